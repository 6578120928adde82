package wiki

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config holds the connection settings for one remote wiki.
type Config struct {
	// APIURL is the wiki's API endpoint (e.g. https://en.wikipedia.org/w/api.php)
	APIURL string

	// Username for bot password authentication (optional, for editing)
	Username string

	// Password for bot password authentication (optional, for editing)
	Password string

	// Timeout for API requests
	Timeout time.Duration

	// UserAgent identifies the bot to the wiki
	UserAgent string

	// MaxRetries for failed requests
	MaxRetries int
}

// LoadConfig loads wiki connection settings from environment variables.
func LoadConfig() (*Config, error) {
	apiURL := os.Getenv("WIKIBOT_API_URL")
	if apiURL == "" {
		return nil, errors.New("WIKIBOT_API_URL environment variable is required")
	}

	timeout := 30 * time.Second
	if t := os.Getenv("WIKIBOT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	maxRetries := 3
	if r := os.Getenv("WIKIBOT_MAX_RETRIES"); r != "" {
		if n, err := strconv.Atoi(r); err == nil && n >= 0 {
			maxRetries = n
		}
	}

	userAgent := os.Getenv("WIKIBOT_USER_AGENT")
	if userAgent == "" {
		userAgent = "Wikibot/1.0 (https://github.com/olgasafonova/wikibot)"
	}

	return &Config{
		APIURL:     apiURL,
		Username:   os.Getenv("WIKIBOT_USERNAME"),
		Password:   os.Getenv("WIKIBOT_PASSWORD"),
		Timeout:    timeout,
		UserAgent:  userAgent,
		MaxRetries: maxRetries,
	}, nil
}

// HasCredentials returns true if authentication credentials are configured.
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// BotName returns the account name without the bot password suffix
// ("User@BotName" -> "User"). Used for on-wiki pages tied to the account,
// like the task shutoff page.
func (c *Config) BotName() string {
	for i := 0; i < len(c.Username); i++ {
		if c.Username[i] == '@' {
			return c.Username[:i]
		}
	}
	return c.Username
}
