// Command wikibot-mcp exposes the bot's wiki layer as a Model Context
// Protocol server over stdio, so MCP clients can read and edit pages
// through the same session handling the bot uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/olgasafonova/wikibot/wiki"
)

const (
	ServerName    = "wikibot-mcp"
	ServerVersion = "1.0.0"
)

// recoverPanic logs a recovered panic instead of crashing the server.
func recoverPanic(logger *slog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered",
			"operation", operation,
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

type GetPageArgs struct {
	Title string `json:"title" jsonschema:"required,description=Page title to retrieve"`
}

type PageResult struct {
	Title      string `json:"title"`
	Content    string `json:"content,omitempty"`
	Exists     bool   `json:"exists"`
	IsRedirect bool   `json:"is_redirect"`
	URL        string `json:"url,omitempty"`
}

type RedirectTargetArgs struct {
	Title string `json:"title" jsonschema:"required,description=Title of the redirect page"`
}

type RedirectTargetResult struct {
	Title  string `json:"title"`
	Target string `json:"target"`
}

type EditPageArgs struct {
	Title   string `json:"title" jsonschema:"required,description=Page title to create or edit"`
	Text    string `json:"text" jsonschema:"required,description=New page text (wikitext)"`
	Summary string `json:"summary,omitempty" jsonschema:"description=Edit summary"`
	Minor   bool   `json:"minor,omitempty" jsonschema:"description=Mark the edit as minor"`
	Bot     bool   `json:"bot,omitempty" jsonschema:"description=Mark the edit as a bot edit"`
	Force   bool   `json:"force,omitempty" jsonschema:"description=Ignore edit conflicts and deleted-page checks"`
}

type EditResult struct {
	Title   string `json:"title"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type AddSectionArgs struct {
	Title       string `json:"title" jsonschema:"required,description=Page title to append to"`
	SectionName string `json:"section_name" jsonschema:"required,description=Heading for the new section"`
	Text        string `json:"text" jsonschema:"required,description=Section body (wikitext)"`
}

func main() {
	// stdout carries the MCP protocol, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	config, err := wiki.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	site := wiki.NewSite(config, logger)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Logger: logger,
		Instructions: `wikibot-mcp provides tools for reading and editing a MediaWiki wiki.

Available tools:
- wiki_get_page: Get a page's wikitext content and basic metadata
- wiki_get_redirect_target: Resolve a redirect page to its target title
- wiki_edit_page: Create or replace a page's content (requires authentication)
- wiki_add_section: Append a new section to a page (requires authentication)

Configure via environment variables:
- WIKIBOT_API_URL: Wiki API URL (e.g., https://wiki.example.com/w/api.php)
- WIKIBOT_USERNAME: Bot username (for editing)
- WIKIBOT_PASSWORD: Bot password (for editing)`,
	})

	registerTools(server, site, logger)

	ctx := context.Background()
	if site.HasCredentials() {
		if err := site.Login(ctx); err != nil {
			logger.Warn("Login failed; edits will be rejected", "error", err)
		}
	}
	if err := site.LoadNamespaces(ctx); err != nil {
		logger.Warn("Could not load namespaces; using built-in defaults", "error", err)
	}

	logger.Info("Starting MCP server",
		"name", ServerName,
		"version", ServerVersion,
		"wiki_url", config.APIURL,
	)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func registerTools(server *mcp.Server, site *wiki.Site, logger *slog.Logger) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "wiki_get_page",
		Description: "Retrieve a wiki page's wikitext content. A single redirect hop is followed automatically; the result reports the resolved title.",
		Annotations: &mcp.ToolAnnotations{
			Title:         "Get Page",
			ReadOnlyHint:  true,
			OpenWorldHint: ptr(true),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args GetPageArgs) (*mcp.CallToolResult, PageResult, error) {
		defer recoverPanic(logger, "get_page")
		page := site.Page(args.Title)
		content, err := page.Get(ctx)
		if err != nil {
			var notFound *wiki.PageNotFoundError
			if errors.As(err, &notFound) {
				return nil, PageResult{Title: page.Title(), Exists: false}, nil
			}
			return nil, PageResult{}, fmt.Errorf("failed to get page: %w", err)
		}
		redirect, _ := page.IsRedirect(ctx)
		logger.Info("Tool executed",
			"tool", "wiki_get_page",
			"title", page.Title(),
			"output_chars", len(content),
		)
		return nil, PageResult{
			Title:      page.Title(),
			Content:    content,
			Exists:     true,
			IsRedirect: redirect,
			URL:        page.URL(),
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "wiki_get_redirect_target",
		Description: "Resolve a redirect page to the title it points at. Fails if the page is not a redirect.",
		Annotations: &mcp.ToolAnnotations{
			Title:         "Get Redirect Target",
			ReadOnlyHint:  true,
			OpenWorldHint: ptr(true),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RedirectTargetArgs) (*mcp.CallToolResult, RedirectTargetResult, error) {
		defer recoverPanic(logger, "get_redirect_target")
		page := site.Page(args.Title)
		target, err := page.RedirectTarget(ctx)
		if err != nil {
			return nil, RedirectTargetResult{}, fmt.Errorf("failed to resolve redirect: %w", err)
		}
		logger.Info("Tool executed",
			"tool", "wiki_get_redirect_target",
			"title", page.Title(),
			"target", target,
		)
		return nil, RedirectTargetResult{Title: page.Title(), Target: target}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "wiki_edit_page",
		Description: "Create a page or replace its content. Unless force is set, the edit refuses to overwrite changes made since the page was last read.",
		Annotations: &mcp.ToolAnnotations{
			Title:           "Edit Page",
			DestructiveHint: ptr(true),
			OpenWorldHint:   ptr(true),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args EditPageArgs) (*mcp.CallToolResult, EditResult, error) {
		defer recoverPanic(logger, "edit_page")
		page := site.Page(args.Title)
		err := page.Edit(ctx, args.Text, args.Summary, wiki.EditOptions{
			Minor: args.Minor,
			Bot:   args.Bot,
			Force: args.Force,
		})
		if err != nil {
			var conflict *wiki.EditConflictError
			if errors.As(err, &conflict) {
				return nil, EditResult{
					Title:   page.Title(),
					Message: "edit conflict: the page changed since it was read; retry or set force",
				}, nil
			}
			return nil, EditResult{}, fmt.Errorf("failed to edit page: %w", err)
		}
		logger.Info("Tool executed",
			"tool", "wiki_edit_page",
			"title", page.Title(),
			"summary", args.Summary,
			"text_chars", len(args.Text),
		)
		return nil, EditResult{Title: page.Title(), Success: true, Message: "page saved"}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "wiki_add_section",
		Description: "Append a new titled section to a page, for example a talk page message. Never overwrites existing content.",
		Annotations: &mcp.ToolAnnotations{
			Title:         "Add Section",
			OpenWorldHint: ptr(true),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args AddSectionArgs) (*mcp.CallToolResult, EditResult, error) {
		defer recoverPanic(logger, "add_section")
		page := site.Page(args.Title)
		if err := page.AddSection(ctx, args.Text, args.SectionName, wiki.EditOptions{}); err != nil {
			return nil, EditResult{}, fmt.Errorf("failed to add section: %w", err)
		}
		logger.Info("Tool executed",
			"tool", "wiki_add_section",
			"title", page.Title(),
			"section", args.SectionName,
		)
		return nil, EditResult{Title: page.Title(), Success: true, Message: "section added"}, nil
	})
}

func ptr[T any](v T) *T {
	return &v
}
