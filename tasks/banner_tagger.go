package tasks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/olgasafonova/wikibot/wiki"
)

// BannerTagger tags the talk pages of a category's members with a
// WikiProject banner template, skipping pages that already carry the
// banner under any of its redirect aliases.
//
// Args:
//
//	banner   - banner template name, with or without the Template: prefix
//	category - category whose members get tagged
//	summary  - edit summary body; $3 becomes the banner wikitext
//	append   - extra parameters appended inside the banner ("|importance=low")
//	nocreate - skip pages whose talk page does not exist yet
//	depth    - how many subcategory levels to descend into (default 0)
type BannerTagger struct{}

func (t *BannerTagger) Name() string { return "banner_tagger" }

func (t *BannerTagger) Number() int { return 1 }

// tagJob carries one run's resolved parameters and edit counter.
type tagJob struct {
	banner   string // banner name without namespace prefix
	aliases  []*regexp.Regexp
	summary  string
	appendix string
	nocreate bool
	counter  int
}

func (t *BannerTagger) Run(ctx context.Context, env *Env, args Args) error {
	bannerArg := args["banner"]
	if bannerArg == "" {
		return errors.New("banner_tagger needs a banner argument")
	}
	category := args["category"]
	if category == "" {
		return errors.New("banner_tagger needs a category argument")
	}
	summary := args["summary"]
	if summary == "" {
		summary = "Adding WikiProject banner $3."
	}
	depth := 0
	if d := args["depth"]; d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return fmt.Errorf("bad depth argument %q", d)
		}
		depth = n
	}

	banner, names, err := bannerNames(ctx, env.Site, bannerArg)
	if err != nil {
		return err
	}
	env.Logger.Debug("Resolved banner aliases", "banner", banner, "count", len(names))

	job := &tagJob{
		banner:   banner,
		aliases:  compileAliases(names),
		summary:  summary,
		appendix: args["append"],
		nocreate: args["nocreate"] != "",
	}

	category = guessNamespace(env.Site, category, wiki.NSCategory)
	return t.processCategory(ctx, env, job, category, depth)
}

func (t *BannerTagger) processCategory(ctx context.Context, env *Env, job *tagJob, category string, depth int) error {
	env.Logger.Info("Processing category", "category", category)

	members, err := env.Site.CategoryMembers(ctx, category)
	if err != nil {
		return err
	}

	for _, member := range members {
		if member.Namespace == wiki.NSCategory {
			if depth > 0 {
				if err := t.processCategory(ctx, env, job, member.Title, depth-1); err != nil {
					return err
				}
			}
			continue
		}
		if err := t.processPage(ctx, env, job, member.Title); err != nil {
			return err
		}
	}
	return nil
}

func (t *BannerTagger) processPage(ctx context.Context, env *Env, job *tagJob, title string) error {
	// Check the emergency shutoff every ten pages.
	if job.counter%10 == 0 {
		enabled, err := env.ShutoffEnabled(ctx, t.Number())
		if err != nil {
			return err
		}
		if enabled {
			return ErrShutoff
		}
	}
	job.counter++

	page := env.Site.Page(title)
	if !page.IsTalkPage() {
		talk, err := page.ToggleTalk()
		if err != nil {
			env.Logger.Error("Skipping page without a talk page", "title", title, "error", err)
			return nil
		}
		page = talk
	}

	banner := "{{" + job.banner + job.appendix + "}}"
	summary := env.Summary(t.Number(), strings.ReplaceAll(job.summary, "$3", banner))

	content, err := page.Get(ctx)
	if err != nil {
		var notFound *wiki.PageNotFoundError
		var invalid *wiki.InvalidPageError
		switch {
		case errors.As(err, &notFound):
			if job.nocreate {
				env.Logger.Info("Skipping nonexistent talk page", "title", page.Title())
				return nil
			}
			env.Logger.Info("Tagging new talk page", "title", page.Title())
			return page.Edit(ctx, banner, summary, wiki.EditOptions{Bot: true})
		case errors.As(err, &invalid):
			env.Logger.Error("Skipping invalid page", "title", page.Title())
			return nil
		}
		return err
	}

	if hasBanner(content, job.aliases) {
		env.Logger.Debug("Banner already present", "title", page.Title())
		return nil
	}

	env.Logger.Info("Tagging talk page", "title", page.Title())
	return page.Edit(ctx, insertBanner(content, banner), summary, wiki.EditOptions{Bot: true})
}

// guessNamespace prefixes a bare title with an assumed namespace; a title
// that already carries a recognized prefix is returned unchanged.
func guessNamespace(site *wiki.Site, title string, assumed int) string {
	idx := strings.Index(title, ":")
	if idx > 0 {
		if _, err := site.NamespaceNameToID(title[:idx]); err == nil {
			return title
		}
	}
	name, err := site.NamespaceIDToName(assumed)
	if err != nil || name == "" {
		return title
	}
	return name + ":" + title
}

// bannerNames resolves a banner argument to its bare name and the set of
// names it may appear under on a page: the name itself, its full title,
// and every redirect pointing at the template.
func bannerNames(ctx context.Context, site *wiki.Site, banner string) (string, []string, error) {
	title := guessNamespace(site, banner, wiki.NSTemplate)
	if title == banner {
		if idx := strings.Index(banner, ":"); idx > 0 {
			banner = banner[idx+1:]
		}
	}

	page := site.Page(title)
	exists, err := page.Exists(ctx)
	if err != nil {
		return "", nil, err
	}
	if exists != wiki.ExistenceExists {
		return "", nil, fmt.Errorf("banner template %q does not exist", title)
	}

	names := []string{banner}
	if title != banner {
		names = append(names, title)
	}

	redirects, err := site.Backlinks(ctx, title, true)
	if err != nil {
		return "", nil, err
	}
	for _, ref := range redirects {
		names = append(names, ref.Title)
		if ref.Namespace == wiki.NSTemplate {
			if idx := strings.Index(ref.Title, ":"); idx > 0 {
				names = append(names, ref.Title[idx+1:])
			}
		}
	}
	return banner, names, nil
}

// compileAliases builds one matcher per banner name, tolerating case and
// space/underscore variation in the transclusion.
func compileAliases(names []string) []*regexp.Regexp {
	aliases := make([]*regexp.Regexp, 0, len(names))
	for _, name := range names {
		pattern := regexp.QuoteMeta(name)
		pattern = strings.ReplaceAll(pattern, ` `, `[ _]`)
		pattern = strings.ReplaceAll(pattern, `_`, `[ _]`)
		aliases = append(aliases, regexp.MustCompile(`(?i)\{\{\s*`+pattern+`\s*[|}]`))
	}
	return aliases
}

func hasBanner(content string, aliases []*regexp.Regexp) bool {
	for _, alias := range aliases {
		if alias.MatchString(content) {
			return true
		}
	}
	return false
}

// Template names that belong above WikiProject banners in the talk page
// layout order.
var topTemplateNames = []string{
	`skip[ _]?to ?(?:toc|talk|toctalk)`,
	`ga ?nominee`,
	`(?:user ?)?talk ?(?:header|page|page ?header)`,
	`community ?article ?probation`,
	`censor(?:-nudity)?`,
	`blp(?:o| ?others?)?`,
	`controvers(?:ial2?|y)`,
	`(?:not ?(?:a ?)?)?forum`,
	`tv(?:episode|series)talk`,
	`recurring ?themes`,
	`faq`,
	`(?:round ?in ?)?circ(?:les|ular)`,
	`ar(?:ti|it)cle ?(?:history|milestones)`,
	`failed ?ga`,
	`old ?prod(?: ?full)?`,
	`(?:old|previous) ?afd`,
	`(?:(?:wikiproject|wp) ?)?bio(?:graph(?:y|ies))?`,
}

var reTopTemplate = regexp.MustCompile(
	`(?i)^\{\{\s*(?:template:)?\s*(?:` + strings.Join(topTemplateNames, "|") + `)\s*(?:[|}]|$)`)

// insertBanner places the banner below any leading run of top templates
// and above the rest of the page.
func insertBanner(content, banner string) string {
	lines := strings.Split(content, "\n")

	insert := 0
	for insert < len(lines) {
		trimmed := strings.TrimSpace(lines[insert])
		if trimmed == "" || reTopTemplate.MatchString(trimmed) {
			insert++
			continue
		}
		break
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insert]...)
	out = append(out, banner)
	out = append(out, lines[insert:]...)
	return strings.Join(out, "\n")
}
