package tasks

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/olgasafonova/wikibot/wiki"
)

func TestGuessNamespace(t *testing.T) {
	site := wiki.NewSite(&wiki.Config{APIURL: "https://wiki.example.org/w/api.php"}, testLogger())

	tests := []struct {
		title   string
		assumed int
		want    string
	}{
		{"WikiProject Biography", wiki.NSTemplate, "Template:WikiProject Biography"},
		{"Template:WikiProject Biography", wiki.NSTemplate, "Template:WikiProject Biography"},
		{"Physics", wiki.NSCategory, "Category:Physics"},
		{"Category:Physics", wiki.NSCategory, "Category:Physics"},
		// An unknown prefix is part of the bare title.
		{"Einstein: his life", wiki.NSCategory, "Category:Einstein: his life"},
	}
	for _, tt := range tests {
		if got := guessNamespace(site, tt.title, tt.assumed); got != tt.want {
			t.Errorf("guessNamespace(%q, %d) = %q, want %q", tt.title, tt.assumed, got, tt.want)
		}
	}
}

func TestHasBanner(t *testing.T) {
	aliases := compileAliases([]string{"WikiProject Physics", "Template:WikiProject Physics", "WP Physics"})

	tests := []struct {
		content string
		want    bool
	}{
		{"{{WikiProject Physics}}\nsome talk", true},
		{"{{wikiproject physics|class=B}}", true},
		{"{{WikiProject_Physics}}", true},
		{"{{WP Physics}}", true},
		{"{{Template:WikiProject Physics}}", true},
		{"{{WikiProject Physics and Chemistry}}", false},
		{"talk about {{WikiProject Biology}}", false},
		{"no templates at all", false},
	}
	for _, tt := range tests {
		if got := hasBanner(tt.content, aliases); got != tt.want {
			t.Errorf("hasBanner(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestInsertBanner(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain talk page",
			content: "== Old thread ==\ndiscussion",
			want:    "{{Banner}}\n== Old thread ==\ndiscussion",
		},
		{
			name:    "below talk header",
			content: "{{Talk header}}\n== Old thread ==",
			want:    "{{Talk header}}\n{{Banner}}\n== Old thread ==",
		},
		{
			name:    "below a run of top templates",
			content: "{{Skip to talk}}\n{{Talk header|search=yes}}\n{{FAQ}}\nbody",
			want:    "{{Skip to talk}}\n{{Talk header|search=yes}}\n{{FAQ}}\n{{Banner}}\nbody",
		},
		{
			name:    "other banners are not top templates",
			content: "{{WikiProject Biology}}\nbody",
			want:    "{{Banner}}\n{{WikiProject Biology}}\nbody",
		},
		{
			name:    "empty page",
			content: "",
			want:    "{{Banner}}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := insertBanner(tt.content, "{{Banner}}"); got != tt.want {
				t.Errorf("insertBanner = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInsertBanner_EmptyPageKeepsBannerFirst(t *testing.T) {
	got := insertBanner("\n\nlate start", "{{Banner}}")
	if !strings.HasSuffix(got, "late start") || !strings.Contains(got, "{{Banner}}") {
		t.Errorf("insertBanner = %q", got)
	}
}

// TestBannerTagger_Run drives a full run against a mock wiki: a category
// with one article whose talk page exists and one whose talk page does not.
func TestBannerTagger_Run(t *testing.T) {
	var edits []url.Values

	site := testSite(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.FormValue("list") == "categorymembers":
			respond(t, w, map[string]any{
				"query": map[string]any{
					"categorymembers": []any{
						map[string]any{"title": "Quark", "ns": float64(0)},
						map[string]any{"title": "Lepton", "ns": float64(0)},
					},
				},
			})

		case r.FormValue("list") == "backlinks":
			respond(t, w, map[string]any{
				"query": map[string]any{
					"backlinks": []any{
						map[string]any{"title": "Template:WP Physics", "ns": float64(10)},
					},
				},
			})

		case r.FormValue("action") == "query":
			switch title := r.FormValue("titles"); title {
			case "Template:WikiProject Physics":
				respond(t, w, pageResponse(7, title, "banner body"))
			case "Talk:Quark":
				respond(t, w, pageResponse(8, title, "{{Talk header}}\n== Thread =="))
			case "Talk:Lepton":
				respond(t, w, pageResponse(-1, title, ""))
			default:
				t.Errorf("unexpected titles=%q", title)
			}

		case r.FormValue("action") == "edit":
			params := url.Values{}
			for k, v := range r.Form {
				params[k] = v
			}
			edits = append(edits, params)
			respond(t, w, map[string]any{"edit": map[string]any{"result": "Success"}})

		default:
			t.Errorf("unexpected request: %v", r.Form)
		}
	})

	env := &Env{
		Site:            site,
		Logger:          testLogger(),
		SummaryTemplate: "([[WP:BOT|Bot]]; Task $1): $2",
	}

	task := &BannerTagger{}
	err := task.Run(context.Background(), env, Args{
		"banner":   "WikiProject Physics",
		"category": "Physics",
		"append":   "|importance=low",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(edits) != 2 {
		t.Fatalf("edits = %d, want 2", len(edits))
	}

	banner := "{{WikiProject Physics|importance=low}}"
	wantSummary := "([[WP:BOT|Bot]]; Task 1): Adding WikiProject banner " + banner + "."

	first := edits[0]
	if first.Get("title") != "Talk:Quark" {
		t.Errorf("first edit title = %q, want Talk:Quark", first.Get("title"))
	}
	if got := first.Get("text"); got != "{{Talk header}}\n"+banner+"\n== Thread ==" {
		t.Errorf("first edit text = %q, banner not below the talk header", got)
	}
	if got := first.Get("summary"); got != wantSummary {
		t.Errorf("first edit summary = %q, want %q", got, wantSummary)
	}
	if first.Get("bot") != "true" {
		t.Error("first edit not flagged as a bot edit")
	}

	second := edits[1]
	if second.Get("title") != "Talk:Lepton" {
		t.Errorf("second edit title = %q, want Talk:Lepton", second.Get("title"))
	}
	if got := second.Get("text"); got != banner {
		t.Errorf("second edit text = %q, want just the banner", got)
	}
	if second.Get("createonly") != "true" {
		t.Error("creating edit missing the createonly guard")
	}
}

func TestBannerTagger_Run_SkipsTaggedAndHonorsNocreate(t *testing.T) {
	var edits int

	site := testSite(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.FormValue("list") == "categorymembers":
			respond(t, w, map[string]any{
				"query": map[string]any{
					"categorymembers": []any{
						map[string]any{"title": "Quark", "ns": float64(0)},
						map[string]any{"title": "Lepton", "ns": float64(0)},
					},
				},
			})
		case r.FormValue("list") == "backlinks":
			respond(t, w, map[string]any{"query": map[string]any{"backlinks": []any{}}})
		case r.FormValue("action") == "query":
			switch title := r.FormValue("titles"); title {
			case "Template:WikiProject Physics":
				respond(t, w, pageResponse(7, title, "banner body"))
			case "Talk:Quark":
				respond(t, w, pageResponse(8, title, "{{wikiproject_physics|class=Start}}\ntalk"))
			case "Talk:Lepton":
				respond(t, w, pageResponse(-1, title, ""))
			}
		case r.FormValue("action") == "edit":
			edits++
			respond(t, w, map[string]any{"edit": map[string]any{"result": "Success"}})
		}
	})

	env := &Env{Site: site, Logger: testLogger()}
	task := &BannerTagger{}
	err := task.Run(context.Background(), env, Args{
		"banner":   "WikiProject Physics",
		"category": "Physics",
		"nocreate": "true",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if edits != 0 {
		t.Errorf("edits = %d, want 0 (already tagged, and nocreate set)", edits)
	}
}

func TestBannerTagger_Run_MissingBanner(t *testing.T) {
	site := testSite(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, pageResponse(-1, r.FormValue("titles"), ""))
	})

	env := &Env{Site: site, Logger: testLogger()}
	task := &BannerTagger{}
	err := task.Run(context.Background(), env, Args{
		"banner":   "WikiProject Nonexistent",
		"category": "Physics",
	})
	if err == nil {
		t.Fatal("Run succeeded with a nonexistent banner template")
	}
}

func TestBannerTagger_Run_ArgValidation(t *testing.T) {
	env := &Env{Logger: testLogger()}
	task := &BannerTagger{}

	if err := task.Run(context.Background(), env, Args{"category": "X"}); err == nil {
		t.Error("Run succeeded without a banner argument")
	}
	if err := task.Run(context.Background(), env, Args{"banner": "X"}); err == nil {
		t.Error("Run succeeded without a category argument")
	}
}
