package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/olgasafonova/wikibot/internal/infra"
	"github.com/olgasafonova/wikibot/irc"
	"github.com/olgasafonova/wikibot/wiki"
)

const defineCacheTTL = 15 * time.Minute

// Define looks up a term on a Wiktionary and summarizes its definitions,
// one clause per language the entry covers. Lookups are cached and
// identical in-flight lookups are coalesced.
type Define struct {
	site   *wiki.Site
	logger *slog.Logger
	cache  *infra.Cache
	dedup  *infra.RequestDeduplicator
}

func NewDefine(site *wiki.Site, logger *slog.Logger) *Define {
	return &Define{
		site:   site,
		logger: logger,
		cache:  infra.NewCache(256),
		dedup:  infra.NewRequestDeduplicator(),
	}
}

func (d *Define) Name() string { return "define" }

func (d *Define) Triggers() []string { return []string{"define", "dict", "dictionary"} }

func (d *Define) Run(ctx context.Context, msg *irc.Message) (string, error) {
	if len(msg.Args) == 0 {
		return msg.Nick + ": what do you want me to define?", nil
	}
	term := strings.Join(msg.Args, " ")

	key := "define:" + term
	if cached, ok := d.cache.Get(key); ok {
		return cached.(string), nil
	}

	result, _, err := d.dedup.Do(ctx, key, func() (interface{}, error) {
		return d.define(ctx, term)
	})
	if err != nil {
		return "", err
	}

	reply := result.(string)
	d.cache.Set(key, reply, defineCacheTTL)
	return reply, nil
}

func (d *Define) define(ctx context.Context, term string) (string, error) {
	page := d.site.Page(term)

	entry, err := page.Get(ctx)
	if err != nil {
		var notFound *wiki.PageNotFoundError
		var invalid *wiki.InvalidPageError
		if errors.As(err, &notFound) || errors.As(err, &invalid) {
			return "no definition found.", nil
		}
		return "", err
	}

	languages := languageSections(entry)
	if len(languages) == 0 {
		return fmt.Sprintf("couldn't parse %s!", page.URL()), nil
	}

	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Strings(names)

	var clauses []string
	for _, name := range names {
		if defs := definitions(languages[name]); defs != "" {
			clauses = append(clauses, fmt.Sprintf("(%s) %s", name, defs))
		}
	}
	if len(clauses) == 0 {
		return fmt.Sprintf("couldn't parse %s!", page.URL()), nil
	}
	return strings.Join(clauses, "; "), nil
}

// reLanguageHeading matches a top-level wikitext heading ("== English ==")
// that opens one language's section of a Wiktionary entry.
var reLanguageHeading = regexp.MustCompile(`(?m)^==\s*([a-zA-Z0-9_ ]+?)\s*==\s*$`)

// languageSections splits a Wiktionary entry into its per-language bodies,
// keyed by language name.
func languageSections(entry string) map[string]string {
	headings := reLanguageHeading.FindAllStringSubmatchIndex(entry, -1)
	if len(headings) == 0 {
		return nil
	}

	sections := make(map[string]string, len(headings))
	for i, h := range headings {
		name := entry[h[2]:h[3]]
		end := len(entry)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		sections[name] = entry[h[1]:end]
	}
	return sections
}

// partsOfSpeech maps the subsection headings worth summarizing to their
// abbreviated labels, in output order.
var partsOfSpeech = []struct {
	abbrev  string
	heading string
}{
	{"n.", "Noun"},
	{"prop. n.", "Proper noun"},
	{"v.", "Verb"},
	{"adj.", "Adjective"},
	{"adv.", "Adverb"},
	{"pron.", "Pronoun"},
	{"prep.", "Preposition"},
	{"conj.", "Conjunction"},
	{"inter.", "Interjection"},
	{"phrase", "Phrase"},
	{"proverb", "Proverb"},
	{"symbol", "Symbol"},
	{"suffix", "Suffix"},
	{"initialism", "Initialism"},
}

// definitions summarizes one language section: for each part of speech
// present, the numbered senses under its heading.
func definitions(section string) string {
	var defs []string
	for _, pos := range partsOfSpeech {
		re := regexp.MustCompile(`(?s)===\s*` + regexp.QuoteMeta(pos.heading) + `\s*===(.*?)(?:===|\z)`)
		m := re.FindStringSubmatch(section)
		if m == nil {
			continue
		}
		if body := parseSenses(m[1]); body != "" {
			defs = append(defs, fmt.Sprintf("\x02%s\x0f %s", pos.abbrev, body))
		}
	}
	return strings.Join(defs, "; ")
}

var (
	reSense     = regexp.MustCompile(`^#\s*[^:*#]`)
	rePipedLink = regexp.MustCompile(`\[\[(.*?)\|(.*?)\]\]`)
)

// parseSenses extracts the numbered definition lines ("# ...") from a
// part-of-speech body and flattens their wikitext markup.
func parseSenses(body string) string {
	var senses []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !reSense.MatchString(line) {
			continue
		}
		line = rePipedLink.ReplaceAllString(line, "$2")
		line = stripTemplates(line)
		line = strings.TrimPrefix(line, "#")
		line = strings.ReplaceAll(line, "'''", "")
		line = strings.ReplaceAll(line, "''", "")
		line = strings.ReplaceAll(line, "[[", "")
		line = strings.ReplaceAll(line, "]]", "")
		senses = append(senses, strings.TrimSpace(line))
	}

	switch len(senses) {
	case 0:
		return ""
	case 1:
		return senses[0]
	}

	numbered := make([]string, len(senses))
	for i, sense := range senses {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, sense)
	}
	return strings.Join(numbered, " ")
}

// stripTemplates drops {{...}} spans, tracking nesting depth.
func stripTemplates(line string) string {
	var out strings.Builder
	depth := 0
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '{' && i+1 < len(line) && line[i+1] == '{':
			depth++
			i++
		case line[i] == '}' && i+1 < len(line) && line[i+1] == '}':
			depth--
			i++
		case depth == 0:
			out.WriteByte(line[i])
		}
	}
	return out.String()
}
