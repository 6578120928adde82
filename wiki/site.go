// Package wiki implements the bot's wiki toolset: a Site handle for one
// remote MediaWiki installation and a lazily-synchronized Page entity with a
// transactional edit protocol.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olgasafonova/wikibot/metrics"
	"github.com/olgasafonova/wikibot/tracing"
)

// MaxConcurrentRequests limits parallel API calls to prevent overwhelming the wiki
const MaxConcurrentRequests = 3

// Site handles communication with one MediaWiki API endpoint. It is safe for
// concurrent use by multiple tasks; Page values built on top of it are not.
type Site struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger

	// Authentication state
	mu       sync.Mutex
	loggedIn bool

	// Namespace table and URL template; defaults are replaced by LoadNamespaces
	nsMu        sync.RWMutex
	nsByID      map[int]string
	nsByName    map[string]int
	articlePath string

	// Rate limiting - semaphore to control concurrent requests
	semaphore chan struct{}
}

// NewSite creates a Site for the configured wiki. No remote calls are made;
// the namespace table starts from the canonical built-in set until
// LoadNamespaces refreshes it.
func NewSite(config *Config, logger *slog.Logger) *Site {
	jar, _ := cookiejar.New(nil)

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	nsByID := make(map[int]string, len(defaultNamespaces))
	nsByName := make(map[string]int, len(defaultNamespaces)+len(defaultNamespaceAliases))
	for id, name := range defaultNamespaces {
		nsByID[id] = name
		nsByName[normalizeNamespaceName(name)] = id
	}
	for name, id := range defaultNamespaceAliases {
		nsByName[normalizeNamespaceName(name)] = id
	}

	return &Site{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Jar:       jar,
			Transport: transport,
		},
		logger:      logger,
		nsByID:      nsByID,
		nsByName:    nsByName,
		articlePath: defaultArticlePath(config.APIURL),
		semaphore:   make(chan struct{}, MaxConcurrentRequests),
	}
}

// defaultArticlePath derives a usable page URL template from the API URL.
// LoadNamespaces replaces it with the wiki's real article path.
func defaultArticlePath(apiURL string) string {
	base := strings.TrimSuffix(apiURL, "api.php")
	return base + "index.php?title=$1"
}

// Config returns the site's connection settings.
func (s *Site) Config() *Config {
	return s.config
}

// HasCredentials reports whether login credentials are configured.
func (s *Site) HasCredentials() bool {
	return s.config.HasCredentials()
}

// APIQuery makes a request to the wiki API with rate limiting and bounded
// retries. A structured rejection from the wiki (an "error" object in the
// response body) is returned as a *SiteAPIError; transport failures are
// returned as plain wrapped errors.
func (s *Site) APIQuery(ctx context.Context, params url.Values) (map[string]any, error) {
	action := params.Get("action")
	ctx, span := tracing.StartSpan(ctx, "wiki.api_query")
	tracing.AddAPIAttributes(span, action, params.Get("titles"))
	defer span.End()

	start := time.Now()
	result, err := s.apiQuery(ctx, params)
	metrics.APIRequestDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	if err != nil {
		tracing.RecordError(span, err)
		status := "error"
		if _, ok := err.(*SiteAPIError); ok {
			status = "rejected"
		}
		metrics.APIRequestsTotal.WithLabelValues(action, status).Inc()
		return nil, err
	}
	metrics.APIRequestsTotal.WithLabelValues(action, "ok").Inc()
	return result, nil
}

func (s *Site) apiQuery(ctx context.Context, params url.Values) (map[string]any, error) {
	// Acquire semaphore slot (rate limiting)
	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for rate limiter: %w", ctx.Err())
	}

	params.Set("format", "json")

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.APIRetries.Inc()
			backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
		}

		// Create fresh request for each attempt (body is consumed on read)
		req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL, strings.NewReader(params.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", s.config.UserAgent)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			s.logger.Warn("API request failed, retrying",
				"attempt", attempt+1,
				"max_retries", s.config.MaxRetries,
				"error", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			// Don't retry client errors (4xx) except rate limiting (429)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
			}

			if resp.StatusCode == 429 {
				if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
					if seconds, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
						s.logger.Warn("Rate limited, waiting",
							"retry_after", seconds,
							"attempt", attempt+1)
						select {
						case <-time.After(time.Duration(seconds) * time.Second):
						case <-ctx.Done():
							return nil, fmt.Errorf("context cancelled during rate limit wait: %w", ctx.Err())
						}
						continue
					}
				}
			}

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
			s.logger.Warn("API returned non-OK status",
				"status", resp.StatusCode,
				"attempt", attempt+1)
			continue
		}

		var result map[string]any
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		// A structured rejection is not retryable at this layer; callers
		// classify the code.
		if errObj := getMap(result["error"]); errObj != nil {
			return nil, &SiteAPIError{
				Code: getString(errObj["code"]),
				Info: getString(errObj["info"]),
			}
		}

		return result, nil
	}

	return nil, lastErr
}

// Login authenticates with the wiki using the configured bot password.
// It is idempotent; a session that is already established is reused.
func (s *Site) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.HasCredentials() {
		return fmt.Errorf("no credentials configured; set WIKIBOT_USERNAME and WIKIBOT_PASSWORD")
	}

	// Get login token
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", "login")

	resp, err := s.APIQuery(ctx, params)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to get login token: %w", err)
	}

	loginToken := getString(getMap(getMap(resp["query"])["tokens"])["logintoken"])
	if loginToken == "" {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("no login token in response")
	}

	// Perform login
	params = url.Values{}
	params.Set("action", "login")
	params.Set("lgname", s.config.Username)
	params.Set("lgpassword", s.config.Password)
	params.Set("lgtoken", loginToken)

	resp, err = s.APIQuery(ctx, params)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("login failed: %w", err)
	}

	login := getMap(resp["login"])
	result := getString(login["result"])
	if result != "Success" {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		if reason := login["reason"]; reason != nil {
			return fmt.Errorf("login failed: %s - %v", result, reason)
		}
		return fmt.Errorf("login failed: %s", result)
	}

	s.loggedIn = true
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Logged in", "username", s.config.Username)

	return nil
}

// LoadNamespaces refreshes the namespace table and the article-path URL
// template from the wiki's siteinfo. Call once at startup; Site works
// without it using the built-in defaults.
func (s *Site) LoadNamespaces(ctx context.Context) error {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "siteinfo")
	params.Set("siprop", "namespaces|namespacealiases|general")

	resp, err := s.APIQuery(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to load siteinfo: %w", err)
	}

	query := getMap(resp["query"])
	if query == nil {
		return fmt.Errorf("unexpected siteinfo response: missing query")
	}

	nsByID := make(map[int]string)
	nsByName := make(map[string]int)

	for _, nsData := range getMap(query["namespaces"]) {
		ns := getMap(nsData)
		if ns == nil {
			continue
		}
		id := getInt(ns["id"])
		name := getString(ns["*"])
		nsByID[id] = name
		nsByName[normalizeNamespaceName(name)] = id
		if canonical := getString(ns["canonical"]); canonical != "" {
			nsByName[normalizeNamespaceName(canonical)] = id
		}
	}

	for _, aliasData := range getSlice(query["namespacealiases"]) {
		alias := getMap(aliasData)
		if alias == nil {
			continue
		}
		nsByName[normalizeNamespaceName(getString(alias["*"]))] = getInt(alias["id"])
	}

	articlePath := s.articlePath
	if general := getMap(query["general"]); general != nil {
		server := getString(general["server"])
		path := getString(general["articlepath"])
		if server != "" && path != "" {
			articlePath = server + path
		}
	}

	s.nsMu.Lock()
	if len(nsByID) > 0 {
		s.nsByID = nsByID
		s.nsByName = nsByName
	}
	s.articlePath = articlePath
	s.nsMu.Unlock()

	s.logger.Debug("Loaded namespaces", "count", len(nsByID))
	return nil
}

// NamespaceNameToID resolves a namespace name or alias to its ID.
func (s *Site) NamespaceNameToID(name string) (int, error) {
	s.nsMu.RLock()
	defer s.nsMu.RUnlock()
	if id, ok := s.nsByName[normalizeNamespaceName(name)]; ok {
		return id, nil
	}
	return 0, &NamespaceNotFoundError{Prefix: name}
}

// NamespaceIDToName resolves a namespace ID to its local name. The main
// namespace resolves to the empty string.
func (s *Site) NamespaceIDToName(id int) (string, error) {
	s.nsMu.RLock()
	defer s.nsMu.RUnlock()
	if name, ok := s.nsByID[id]; ok {
		return name, nil
	}
	return "", &NamespaceNotFoundError{ID: id}
}

// PageURL computes a page URL locally from the article-path template.
func (s *Site) PageURL(title string) string {
	slug := strings.ReplaceAll(title, " ", "_")
	escaped := (&url.URL{Path: slug}).EscapedPath()
	s.nsMu.RLock()
	path := s.articlePath
	s.nsMu.RUnlock()
	return strings.Replace(path, "$1", escaped, 1)
}

// Page returns a Page for the given title without redirect following.
func (s *Site) Page(title string) *Page {
	return NewPage(s, title, false)
}

// Helpers for walking the API's JSON responses.

func getMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func getSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func getString(v any) string {
	s, _ := v.(string)
	return s
}

func getInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
