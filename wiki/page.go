package wiki

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Existence describes what we know about a page behind a title.
type Existence int

const (
	// ExistenceUnknown means no metadata fetch has happened yet.
	ExistenceUnknown Existence = iota
	// ExistenceInvalid means the title can never name a page. Terminal.
	ExistenceInvalid
	// ExistenceMissing means the title is valid but no page exists. An edit
	// can create it.
	ExistenceMissing
	// ExistenceExists means the page exists.
	ExistenceExists
)

func (e Existence) String() string {
	switch e {
	case ExistenceInvalid:
		return "invalid"
	case ExistenceMissing:
		return "missing"
	case ExistenceExists:
		return "exists"
	default:
		return "unknown"
	}
}

// ProtectionRule is one entry of a page's protection status.
type ProtectionRule struct {
	Type   string // "edit", "move", "create", ...
	Level  string // "autoconfirmed", "sysop", ...
	Expiry string
}

// mwTimestampLayout is the timestamp format the API speaks.
const mwTimestampLayout = "2006-01-02T15:04:05Z"

// reRedirect matches the redirect marker at the start of page content and
// captures the link target.
var reRedirect = regexp.MustCompile(`(?i)^\s*#\s*redirect\s*\[\[(.*?)\]\]`)

// Page represents one titled page on one remote wiki. It performs no remote
// calls at construction; metadata and content are fetched lazily by the
// accessors and cached until an edit or an explicit Reload invalidates them.
//
// A Page is a plain synchronous value for a single logical task. Concurrent
// tasks editing the same remote title should use separate Page values and
// rely on the edit protocol's conflict-detection timestamps, not on locks.
type Page struct {
	site   *Site
	title  string
	exists Existence

	followRedirects bool
	keepFollowing   bool

	pageID     int64
	namespace  int
	isTalkpage bool
	isRedirect bool
	lastRevID  int64
	protection []ProtectionRule
	fullURL    string
	creator    string

	content       string
	contentLoaded bool

	// Edit transaction state
	token          string
	baseTimestamp  string // when content was last observed remotely
	startTimestamp string // when the edit token was obtained
}

// NewPage creates a Page for a title on a site. The namespace and talk-page
// status are derived from the title prefix immediately; everything else is
// fetched lazily. followRedirects enables single-hop redirect resolution on
// the first fetch.
func NewPage(site *Site, title string, followRedirects bool) *Page {
	p := &Page{
		site:            site,
		title:           strings.TrimSpace(title),
		followRedirects: followRedirects,
		keepFollowing:   followRedirects,
	}

	// Best-effort namespace from the title prefix; the first metadata fetch
	// refines it. An unrecognized prefix is part of a mainspace title.
	if prefix, _ := splitTitle(p.title); prefix != "" {
		if ns, err := site.NamespaceNameToID(prefix); err == nil {
			p.namespace = ns
		}
	}
	p.isTalkpage = p.namespace >= 0 && p.namespace%2 == 1

	return p
}

// Title returns the page's current title. Redirect following and remote
// normalization may change it on the first fetch.
func (p *Page) Title() string {
	return p.title
}

// Site returns the page's site.
func (p *Page) Site() *Site {
	return p.site
}

// Namespace returns the page's namespace ID. No remote calls; derived from
// the title until a metadata fetch refines it.
func (p *Page) Namespace() int {
	return p.namespace
}

// IsTalkPage reports whether the page is a talk page (odd namespace).
// No remote calls.
func (p *Page) IsTalkPage() bool {
	return p.isTalkpage
}

// URL returns the page's URL. If the API was never queried, the URL is
// computed locally from the title.
func (p *Page) URL() string {
	if p.fullURL != "" {
		return p.fullURL
	}
	return p.site.PageURL(p.title)
}

// Exists fetches metadata if needed and returns the page's existence state.
func (p *Page) Exists(ctx context.Context) (Existence, error) {
	if p.exists == ExistenceUnknown {
		if err := p.load(ctx); err != nil {
			return ExistenceUnknown, err
		}
	}
	return p.exists, nil
}

// PageID returns the page's ID. Missing and invalid pages have none.
func (p *Page) PageID(ctx context.Context) (int64, error) {
	if p.exists == ExistenceUnknown {
		if err := p.load(ctx); err != nil {
			return 0, err
		}
	}
	if err := p.assertExistence(); err != nil {
		return 0, err
	}
	return p.pageID, nil
}

// IsRedirect reports whether the page is a redirect. Returns false for
// missing and invalid pages rather than an error.
func (p *Page) IsRedirect(ctx context.Context) (bool, error) {
	if p.exists == ExistenceUnknown {
		if err := p.load(ctx); err != nil {
			return false, err
		}
	}
	return p.isRedirect, nil
}

// Protection returns the page's protection status. Missing pages can still
// be create-protected, so only invalid titles fail.
func (p *Page) Protection(ctx context.Context) ([]ProtectionRule, error) {
	if p.exists == ExistenceUnknown {
		if err := p.load(ctx); err != nil {
			return nil, err
		}
	}
	if err := p.assertValidity(); err != nil {
		return nil, err
	}
	return p.protection, nil
}

// Creator returns the username of the page's first editor.
func (p *Page) Creator(ctx context.Context) (string, error) {
	if p.exists == ExistenceUnknown {
		if err := p.load(ctx); err != nil {
			return "", err
		}
	}
	if err := p.assertExistence(); err != nil {
		return "", err
	}
	if p.creator == "" {
		// Attributes may have been loaded through Get's combined query,
		// which cannot carry the first revision's author. One more fetch.
		if err := p.load(ctx); err != nil {
			return "", err
		}
		if err := p.assertExistence(); err != nil {
			return "", err
		}
	}
	return p.creator, nil
}

// Reload forcibly refreshes the page's metadata, and its content only if
// content had already been fetched. Never materializes never-requested data.
func (p *Page) Reload(ctx context.Context) error {
	if err := p.load(ctx); err != nil {
		return err
	}
	if p.contentLoaded {
		return p.loadContent(ctx, nil)
	}
	return nil
}

// ToggleTalk returns the talk page for a content page, or vice versa. The
// new title comes from namespace logic alone; no remote calls. The optional
// argument overrides the redirect-following flag for the new Page.
func (p *Page) ToggleTalk(followRedirects ...bool) (*Page, error) {
	if p.namespace < 0 {
		name, _ := p.site.NamespaceIDToName(p.namespace)
		return nil, &InvalidPageError{Title: fmt.Sprintf("pages in the %s namespace can't have talk pages", name)}
	}

	newNS := p.namespace + 1
	if p.isTalkpage {
		newNS = p.namespace - 1
	}

	_, body := splitTitle(p.title)
	if p.namespace == NSMain {
		body = p.title
	}

	prefix, err := p.site.NamespaceIDToName(newNS)
	if err != nil {
		return nil, err
	}

	newTitle := body
	if prefix != "" {
		newTitle = prefix + ":" + body
	}

	follow := p.followRedirects
	if len(followRedirects) > 0 {
		follow = followRedirects[0]
	}
	return NewPage(p.site, newTitle, follow), nil
}

// Get returns the page's content, fetching it on first use. When existence
// is entirely unknown, one combined metadata+content query answers both.
// Subsequent calls return the cached value; use Reload for freshness.
func (p *Page) Get(ctx context.Context) (string, error) {
	if p.exists == ExistenceUnknown {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("prop", "info|revisions")
		params.Set("inprop", "protection|url")
		params.Set("intoken", "edit")
		params.Set("rvprop", "content|timestamp")
		params.Set("rvlimit", "1")
		params.Set("titles", p.title)

		result, err := p.site.APIQuery(ctx, params)
		if err != nil {
			return "", err
		}
		if err := p.applyAttributes(result); err != nil {
			return "", err
		}
		if err := p.assertExistence(); err != nil {
			return "", err
		}
		if err := p.applyContent(ctx, result); err != nil {
			return "", err
		}

		if p.keepFollowing && p.isRedirect {
			target, err := p.redirectTargetFromContent()
			if err != nil {
				return "", err
			}
			p.title = target
			p.keepFollowing = false // never follow a second hop
			p.exists = ExistenceUnknown
			p.clearContent()
			return p.Get(ctx)
		}

		return p.content, nil
	}

	// Existence may be outdated if the page was deleted since the last
	// metadata fetch; loadContent handles that by re-fetching metadata.
	if err := p.assertExistence(); err != nil {
		return "", err
	}
	if !p.contentLoaded {
		if err := p.loadContent(ctx, nil); err != nil {
			return "", err
		}
	}
	return p.content, nil
}

// RedirectTarget returns the page's destination if it is a redirect.
func (p *Page) RedirectTarget(ctx context.Context) (string, error) {
	if _, err := p.Get(ctx); err != nil {
		return "", err
	}
	return p.redirectTargetFromContent()
}

func (p *Page) redirectTargetFromContent() (string, error) {
	m := reRedirect.FindStringSubmatch(p.content)
	if m == nil {
		return "", &RedirectError{Title: p.title}
	}
	return m[1], nil
}

// load fetches metadata and follows a redirect once if configured to.
// Manual following (instead of the API's redirect resolution) bounds the
// worst case: double redirects are never followed and circular redirect
// chains cannot loop.
func (p *Page) load(ctx context.Context) error {
	if err := p.loadAttributes(ctx); err != nil {
		return err
	}

	if p.keepFollowing && p.isRedirect {
		target, err := p.RedirectTarget(ctx)
		if err != nil {
			return err
		}
		p.title = target
		p.keepFollowing = false // never follow a second hop
		p.clearContent()
		return p.loadAttributes(ctx)
	}
	return nil
}

func (p *Page) loadAttributes(ctx context.Context) error {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "info|revisions")
	params.Set("inprop", "protection|url")
	params.Set("intoken", "edit")
	params.Set("rvprop", "user")
	params.Set("rvlimit", "1")
	params.Set("rvdir", "newer")
	params.Set("titles", p.title)

	result, err := p.site.APIQuery(ctx, params)
	if err != nil {
		return err
	}
	return p.applyAttributes(result)
}

// applyAttributes classifies a metadata query result into the existence
// state machine and caches what the result carries. A negative page ID with
// a "missing" marker is a missing page; without it, an invalid title.
func (p *Page) applyAttributes(result map[string]any) error {
	pages := getMap(getMap(result["query"])["pages"])
	if len(pages) == 0 {
		return &SiteAPIError{Code: "internal_api_error", Info: "metadata response carries no pages"}
	}

	var pageID int64
	var res map[string]any
	for idStr, pageData := range pages {
		pageID, _ = strconv.ParseInt(idStr, 10, 64)
		res = getMap(pageData)
		break
	}
	if res == nil {
		return &SiteAPIError{Code: "internal_api_error", Info: "malformed page entry in metadata response"}
	}

	// The API normalizes our title (case, underscores, namespace aliases).
	if title := getString(res["title"]); title != "" {
		p.title = title
	}

	_, p.isRedirect = res["redirect"]

	if pageID < 0 {
		if _, missing := res["missing"]; missing {
			// Missing pages still have a namespace, protection, and URL.
			p.exists = ExistenceMissing
		} else {
			// Invalid titles carry no further data at all.
			p.exists = ExistenceInvalid
			return nil
		}
	} else {
		p.exists = ExistenceExists
		p.pageID = pageID
	}

	p.fullURL = getString(res["fullurl"])

	p.protection = p.protection[:0]
	for _, ruleData := range getSlice(res["protection"]) {
		rule := getMap(ruleData)
		if rule == nil {
			continue
		}
		p.protection = append(p.protection, ProtectionRule{
			Type:   getString(rule["type"]),
			Level:  getString(rule["level"]),
			Expiry: getString(rule["expiry"]),
		})
	}

	if token := getString(res["edittoken"]); token != "" {
		p.token = token
		p.startTimestamp = time.Now().UTC().Format(mwTimestampLayout)
	}

	// The constructor guessed namespace and talk-page status from the title;
	// the API's answer is authoritative.
	p.namespace = getInt(res["ns"])
	p.isTalkpage = p.namespace >= 0 && p.namespace%2 == 1

	p.lastRevID = int64(getInt(res["lastrevid"]))

	if revs := getSlice(res["revisions"]); len(revs) > 0 {
		if user := getString(getMap(revs[0])["user"]); user != "" {
			p.creator = user
		}
	}

	return nil
}

// loadContent fetches the current page content and its last-modified
// timestamp (the conflict-detection base for later edits).
func (p *Page) loadContent(ctx context.Context, result map[string]any) error {
	if result == nil {
		params := url.Values{}
		params.Set("action", "query")
		params.Set("prop", "revisions")
		params.Set("rvprop", "content|timestamp")
		params.Set("rvlimit", "1")
		params.Set("titles", p.title)

		var err error
		result, err = p.site.APIQuery(ctx, params)
		if err != nil {
			return err
		}
	}
	return p.applyContent(ctx, result)
}

func (p *Page) applyContent(ctx context.Context, result map[string]any) error {
	pages := getMap(getMap(result["query"])["pages"])
	var res map[string]any
	for _, pageData := range pages {
		res = getMap(pageData)
		break
	}

	revs := getSlice(res["revisions"])
	if len(revs) == 0 {
		// No revision means the page was deleted since the last metadata
		// fetch. Re-derive existence and surface PageNotFoundError instead
		// of a confusing empty result.
		if err := p.loadAttributes(ctx); err != nil {
			return err
		}
		return p.assertExistence()
	}

	rev := getMap(revs[0])
	content, ok := rev["*"].(string)
	if !ok {
		if err := p.loadAttributes(ctx); err != nil {
			return err
		}
		return p.assertExistence()
	}

	p.content = content
	p.contentLoaded = true
	p.baseTimestamp = getString(rev["timestamp"])
	return nil
}

func (p *Page) clearContent() {
	p.content = ""
	p.contentLoaded = false
	p.baseTimestamp = ""
}

// assertValidity fails with InvalidPageError if the title can never be
// valid. Call only after a metadata fetch has classified the page.
func (p *Page) assertValidity() error {
	if p.exists == ExistenceInvalid {
		return &InvalidPageError{Title: p.title}
	}
	return nil
}

// assertExistence fails with PageNotFoundError if the page is missing, after
// checking validity first.
func (p *Page) assertExistence() error {
	if err := p.assertValidity(); err != nil {
		return err
	}
	if p.exists == ExistenceMissing {
		return &PageNotFoundError{Title: p.title}
	}
	return nil
}

// String implements fmt.Stringer.
func (p *Page) String() string {
	return fmt.Sprintf("Page(%q)", p.title)
}
