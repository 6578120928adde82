package wiki

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestNewPage_NamespaceFromTitle(t *testing.T) {
	site := newLocalSite(t)

	tests := []struct {
		title    string
		wantNS   int
		wantTalk bool
	}{
		{"Foo", NSMain, false},
		{"Talk:Foo", NSTalk, true},
		{"User:Foo", NSUser, false},
		{"User talk:Foo", NSUserTalk, true},
		{"User_talk:Foo", NSUserTalk, true},
		{"Category:Cities", NSCategory, false},
		{"Category talk:Cities", NSCategoryTalk, true},
		{"Image:Photo.png", NSFile, false},
		{"Special:RecentChanges", NSSpecial, false},
		// An unrecognized prefix is just a mainspace title with a colon.
		{"Foo:Bar", NSMain, false},
		{"  Foo  ", NSMain, false},
	}
	for _, tt := range tests {
		page := NewPage(site, tt.title, false)
		if page.Namespace() != tt.wantNS {
			t.Errorf("NewPage(%q).Namespace() = %d, want %d", tt.title, page.Namespace(), tt.wantNS)
		}
		if page.IsTalkPage() != tt.wantTalk {
			t.Errorf("NewPage(%q).IsTalkPage() = %v, want %v", tt.title, page.IsTalkPage(), tt.wantTalk)
		}
	}

	if got := NewPage(site, "  Foo  ", false).Title(); got != "Foo" {
		t.Errorf("Title() = %q, want whitespace trimmed", got)
	}
}

func TestToggleTalk(t *testing.T) {
	site := newLocalSite(t)

	tests := []struct {
		title string
		want  string
	}{
		{"Foo", "Talk:Foo"},
		{"Talk:Foo", "Foo"},
		{"User:Alice", "User talk:Alice"},
		{"User talk:Alice", "User:Alice"},
		{"Category:Cities", "Category talk:Cities"},
		// The colon in the body survives the round trip.
		{"User:Alice:Bob", "User talk:Alice:Bob"},
	}
	for _, tt := range tests {
		page := NewPage(site, tt.title, false)
		talk, err := page.ToggleTalk()
		if err != nil {
			t.Errorf("ToggleTalk(%q) failed: %v", tt.title, err)
			continue
		}
		if talk.Title() != tt.want {
			t.Errorf("ToggleTalk(%q) = %q, want %q", tt.title, talk.Title(), tt.want)
		}
		if talk.IsTalkPage() == page.IsTalkPage() {
			t.Errorf("ToggleTalk(%q) did not flip talk-page status", tt.title)
		}
	}
}

func TestToggleTalk_SpecialNamespace(t *testing.T) {
	site := newLocalSite(t)
	page := NewPage(site, "Special:RecentChanges", false)

	var invalidErr *InvalidPageError
	if _, err := page.ToggleTalk(); !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidPageError for special-namespace toggle, got %v", err)
	}
}

func TestExists_StateMachine(t *testing.T) {
	tests := []struct {
		name    string
		pageKey string
		page    map[string]any
		want    Existence
	}{
		{
			name:    "existing page",
			pageKey: "42",
			page:    pageAttributes(42, "Foo", map[string]any{"edittoken": "tok+\\"}),
			want:    ExistenceExists,
		},
		{
			name:    "missing page",
			pageKey: "-1",
			page:    pageAttributes(-1, "Foo", map[string]any{"missing": ""}),
			want:    ExistenceMissing,
		},
		{
			name:    "invalid title",
			pageKey: "-1",
			page: map[string]any{
				"title":         "Foo[bar]",
				"invalidreason": "The requested page title contains invalid characters",
				"invalid":       "",
			},
			want: ExistenceInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var queries int
			server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
				queries++
				writeJSON(t, w, queryResponse(tt.pageKey, tt.page))
			})
			defer server.Close()

			site := newTestSite(t, server)
			page := site.Page("Foo")

			got, err := page.Exists(context.Background())
			if err != nil {
				t.Fatalf("Exists failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists = %v, want %v", got, tt.want)
			}

			// The answer is cached; asking again stays local.
			if _, err := page.Exists(context.Background()); err != nil {
				t.Fatalf("second Exists failed: %v", err)
			}
			if queries != 1 {
				t.Errorf("metadata queries = %d, want 1", queries)
			}
		})
	}
}

func TestPageID_MissingPage(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, queryResponse("-1", pageAttributes(-1, "Foo", map[string]any{"missing": ""})))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo")

	var notFound *PageNotFoundError
	if _, err := page.PageID(context.Background()); !errors.As(err, &notFound) {
		t.Errorf("expected PageNotFoundError, got %v", err)
	}
}

func TestProtection_MissingPageStillAnswers(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, queryResponse("-1", pageAttributes(-1, "Foo", map[string]any{
			"missing": "",
			"protection": []any{
				map[string]any{"type": "create", "level": "sysop", "expiry": "infinity"},
			},
		})))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo")

	rules, err := page.Protection(context.Background())
	if err != nil {
		t.Fatalf("Protection failed: %v", err)
	}
	if len(rules) != 1 || rules[0].Type != "create" || rules[0].Level != "sysop" {
		t.Errorf("Protection = %+v, want one create/sysop rule", rules)
	}
}

func TestGet_CombinedQueryAndCaching(t *testing.T) {
	var queries int
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		queries++
		if !strings.Contains(r.FormValue("rvprop"), "content") {
			t.Errorf("expected a combined content query, got rvprop=%q", r.FormValue("rvprop"))
		}
		page := pageAttributes(42, "Foo", map[string]any{
			"edittoken": "tok+\\",
			"revisions": []any{
				map[string]any{"*": "page text", "timestamp": "2026-08-01T12:00:00Z"},
			},
		})
		writeJSON(t, w, queryResponse("42", page))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo")

	content, err := page.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if content != "page text" {
		t.Errorf("Get = %q, want %q", content, "page text")
	}

	// The combined query answered existence too.
	exists, err := page.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists != ExistenceExists {
		t.Errorf("Exists = %v, want %v", exists, ExistenceExists)
	}

	if _, err := page.Get(context.Background()); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if queries != 1 {
		t.Errorf("remote queries = %d, want 1 (combined metadata+content, then cached)", queries)
	}
}

func TestGet_MissingPage(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, queryResponse("-1", pageAttributes(-1, "Foo", map[string]any{"missing": ""})))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo")

	var notFound *PageNotFoundError
	if _, err := page.Get(context.Background()); !errors.As(err, &notFound) {
		t.Errorf("expected PageNotFoundError, got %v", err)
	}
}

func TestGet_InvalidTitle(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, queryResponse("-1", map[string]any{
			"title":   "Foo[bar]",
			"invalid": "",
		}))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo[bar]")

	var invalidErr *InvalidPageError
	if _, err := page.Get(context.Background()); !errors.As(err, &invalidErr) {
		t.Errorf("expected InvalidPageError, got %v", err)
	}
}

func TestGet_FollowsSingleRedirect(t *testing.T) {
	var queries []string
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		title := r.FormValue("titles")
		queries = append(queries, title)
		switch title {
		case "Foo":
			page := pageAttributes(1, "Foo", map[string]any{
				"redirect":  "",
				"edittoken": "tok+\\",
				"revisions": []any{
					map[string]any{"*": "#REDIRECT [[Bar]]", "timestamp": "2026-08-01T12:00:00Z"},
				},
			})
			writeJSON(t, w, queryResponse("1", page))
		case "Bar":
			page := pageAttributes(2, "Bar", map[string]any{
				"edittoken": "tok+\\",
				"revisions": []any{
					map[string]any{"*": "target text", "timestamp": "2026-08-01T12:00:00Z"},
				},
			})
			writeJSON(t, w, queryResponse("2", page))
		default:
			t.Errorf("unexpected titles=%q", title)
		}
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := NewPage(site, "Foo", true)

	content, err := page.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if content != "target text" {
		t.Errorf("Get = %q, want the redirect target's content", content)
	}
	if page.Title() != "Bar" {
		t.Errorf("Title = %q, want %q after following the redirect", page.Title(), "Bar")
	}
	if len(queries) != 2 {
		t.Errorf("remote queries = %v, want exactly one per hop", queries)
	}

	// One hop only: the target's own redirect status is reported, not chased.
	isRedirect, err := page.IsRedirect(context.Background())
	if err != nil {
		t.Fatalf("IsRedirect failed: %v", err)
	}
	if isRedirect {
		t.Error("IsRedirect = true for the redirect target")
	}
}

func TestGet_DoubleRedirectNotFollowed(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		title := r.FormValue("titles")
		id, key := 1, "1"
		target := "Bar"
		if title == "Bar" {
			id, key = 2, "2"
			target = "Baz"
		}
		page := pageAttributes(id, title, map[string]any{
			"redirect":  "",
			"edittoken": "tok+\\",
			"revisions": []any{
				map[string]any{"*": "#REDIRECT [[" + target + "]]", "timestamp": "2026-08-01T12:00:00Z"},
			},
		})
		writeJSON(t, w, queryResponse(key, page))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := NewPage(site, "Foo", true)

	content, err := page.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if content != "#REDIRECT [[Baz]]" {
		t.Errorf("Get = %q, want the second redirect returned as plain content", content)
	}
	if page.Title() != "Bar" {
		t.Errorf("Title = %q, want %q (one hop only)", page.Title(), "Bar")
	}
}

func TestRedirectTarget(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain", "#REDIRECT [[Bar]]", "Bar", false},
		{"case insensitive", "#redirect [[Bar]]", "Bar", false},
		{"leading whitespace", "  \n#REDIRECT [[Bar baz]]", "Bar baz", false},
		{"spaced hash", "# REDIRECT [[Bar]]", "Bar", false},
		{"not a redirect", "Just an article.", "", true},
		{"marker not at start", "text #REDIRECT [[Bar]]", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
				page := pageAttributes(1, "Foo", map[string]any{
					"edittoken": "tok+\\",
					"revisions": []any{
						map[string]any{"*": tt.content, "timestamp": "2026-08-01T12:00:00Z"},
					},
				})
				writeJSON(t, w, queryResponse("1", page))
			})
			defer server.Close()

			site := newTestSite(t, server)
			page := site.Page("Foo")

			target, err := page.RedirectTarget(context.Background())
			if tt.wantErr {
				var redirErr *RedirectError
				if !errors.As(err, &redirErr) {
					t.Errorf("expected RedirectError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RedirectTarget failed: %v", err)
			}
			if target != tt.want {
				t.Errorf("RedirectTarget = %q, want %q", target, tt.want)
			}
		})
	}
}

func TestReload_RefreshesOnlyFetchedData(t *testing.T) {
	var contentQueries int
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.FormValue("rvprop"), "content") {
			contentQueries++
		}
		page := pageAttributes(42, "Foo", map[string]any{"edittoken": "tok+\\"})
		writeJSON(t, w, queryResponse("42", page))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo")

	if _, err := page.Exists(context.Background()); err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if err := page.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if contentQueries != 0 {
		t.Errorf("content queries = %d, want 0 (content was never requested)", contentQueries)
	}
}

func TestReload_RefreshesContent(t *testing.T) {
	var version int
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		text := "old text"
		if version > 0 {
			text = "new text"
		}
		page := pageAttributes(42, "Foo", map[string]any{
			"edittoken": "tok+\\",
			"revisions": []any{
				map[string]any{"*": text, "timestamp": "2026-08-01T12:00:00Z", "user": "Alice"},
			},
		})
		writeJSON(t, w, queryResponse("42", page))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo")

	if content, err := page.Get(context.Background()); err != nil || content != "old text" {
		t.Fatalf("Get = %q, %v; want old text", content, err)
	}

	version++
	if err := page.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if content, err := page.Get(context.Background()); err != nil || content != "new text" {
		t.Errorf("Get after Reload = %q, %v; want new text", content, err)
	}
}

func TestGet_DetectsRemoteDeletion(t *testing.T) {
	var deleted bool
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if deleted {
			writeJSON(t, w, queryResponse("-1", pageAttributes(-1, "Foo", map[string]any{"missing": ""})))
			return
		}
		page := pageAttributes(42, "Foo", map[string]any{
			"edittoken": "tok+\\",
			"revisions": []any{map[string]any{"user": "Alice"}},
		})
		writeJSON(t, w, queryResponse("42", page))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo")

	// Metadata says the page exists.
	if _, err := page.Exists(context.Background()); err != nil {
		t.Fatalf("Exists failed: %v", err)
	}

	// The page is deleted before content is first requested.
	deleted = true
	var notFound *PageNotFoundError
	if _, err := page.Get(context.Background()); !errors.As(err, &notFound) {
		t.Errorf("expected PageNotFoundError after remote deletion, got %v", err)
	}
	if exists, _ := page.Exists(context.Background()); exists != ExistenceMissing {
		t.Errorf("Exists = %v after deletion, want %v", exists, ExistenceMissing)
	}
}

func TestCreator(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		page := pageAttributes(42, "Foo", map[string]any{
			"edittoken": "tok+\\",
			"revisions": []any{map[string]any{"user": "Alice"}},
		})
		writeJSON(t, w, queryResponse("42", page))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("Foo")

	creator, err := page.Creator(context.Background())
	if err != nil {
		t.Fatalf("Creator failed: %v", err)
	}
	if creator != "Alice" {
		t.Errorf("Creator = %q, want %q", creator, "Alice")
	}
}

func TestURL_LocalAndRemote(t *testing.T) {
	site := newLocalSite(t)
	page := site.Page("Foo Bar")

	want := "https://wiki.example.org/w/index.php?title=Foo_Bar"
	if got := page.URL(); got != want {
		t.Errorf("URL = %q, want locally computed %q", got, want)
	}
}

func TestTitleNormalization(t *testing.T) {
	server := mockWikiServer(t, func(w http.ResponseWriter, r *http.Request) {
		page := pageAttributes(42, "Foo bar", map[string]any{"edittoken": "tok+\\"})
		writeJSON(t, w, queryResponse("42", page))
	})
	defer server.Close()

	site := newTestSite(t, server)
	page := site.Page("foo_bar")

	if _, err := page.Exists(context.Background()); err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if page.Title() != "Foo bar" {
		t.Errorf("Title = %q, want the API-normalized %q", page.Title(), "Foo bar")
	}
}
