package wiki

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

// newTestSite creates a Site that talks to a mock server
func newTestSite(t *testing.T, server *httptest.Server) *Site {
	t.Helper()
	config := &Config{
		APIURL:     server.URL + "/api.php",
		Username:   "TestUser@TestBot",
		Password:   "TestPass",
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		UserAgent:  "TestBot/1.0",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSite(config, logger)
}

// newLocalSite creates a Site for tests that never go remote.
func newLocalSite(t *testing.T) *Site {
	t.Helper()
	config := &Config{
		APIURL:    "https://wiki.example.org/w/api.php",
		Timeout:   5 * time.Second,
		UserAgent: "TestBot/1.0",
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSite(config, logger)
}

// newAnonTestSite creates a Site with no credentials configured
func newAnonTestSite(t *testing.T, server *httptest.Server) *Site {
	t.Helper()
	site := newTestSite(t, server)
	site.config.Username = ""
	site.config.Password = ""
	return site
}

// writeJSON encodes a response body for the mock wiki
func writeJSON(t *testing.T, w http.ResponseWriter, response map[string]any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		t.Errorf("failed to encode mock response: %v", err)
	}
}

// mockWikiServer creates a test server returning mock MediaWiki responses.
// It handles token and login requests itself and delegates everything else
// to handler, so tests only describe the page-level behavior they need.
func mockWikiServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		action := r.FormValue("action")
		meta := r.FormValue("meta")

		if action == "query" && meta == "tokens" {
			tokens := map[string]any{}
			switch r.FormValue("type") {
			case "login":
				tokens["logintoken"] = "test-login-token"
			case "csrf":
				tokens["csrftoken"] = "test-csrf-token"
			}
			writeJSON(t, w, map[string]any{
				"query": map[string]any{"tokens": tokens},
			})
			return
		}

		if action == "login" {
			writeJSON(t, w, map[string]any{
				"login": map[string]any{"result": "Success"},
			})
			return
		}

		handler(w, r)
	}))
}

// pageAttributes builds the inner page object of a metadata response.
func pageAttributes(pageID int, title string, extra map[string]any) map[string]any {
	page := map[string]any{
		"ns":         float64(0),
		"title":      title,
		"protection": []any{},
		"fullurl":    "https://wiki.example.org/wiki/" + title,
	}
	if pageID >= 0 {
		page["pageid"] = float64(pageID)
		page["lastrevid"] = float64(pageID * 10)
	}
	for k, v := range extra {
		page[k] = v
	}
	return page
}

// queryResponse wraps a page object into the API's query/pages envelope.
func queryResponse(pageKey string, page map[string]any) map[string]any {
	return map[string]any{
		"query": map[string]any{
			"pages": map[string]any{pageKey: page},
		},
	}
}
