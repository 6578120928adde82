package wiki

import "strings"

// Well-known MediaWiki namespace IDs.
const (
	NSMedia         = -2
	NSSpecial       = -1
	NSMain          = 0
	NSTalk          = 1
	NSUser          = 2
	NSUserTalk      = 3
	NSProject       = 4
	NSProjectTalk   = 5
	NSFile          = 6
	NSFileTalk      = 7
	NSMediaWiki     = 8
	NSMediaWikiTalk = 9
	NSTemplate      = 10
	NSTemplateTalk  = 11
	NSHelp          = 12
	NSHelpTalk      = 13
	NSCategory      = 14
	NSCategoryTalk  = 15
)

// defaultNamespaces is the canonical namespace set every MediaWiki install
// starts with. Site uses it until LoadNamespaces refreshes the table from
// the wiki itself, so pages can be constructed without any remote calls.
var defaultNamespaces = map[int]string{
	NSMedia:         "Media",
	NSSpecial:       "Special",
	NSMain:          "",
	NSTalk:          "Talk",
	NSUser:          "User",
	NSUserTalk:      "User talk",
	NSProject:       "Project",
	NSProjectTalk:   "Project talk",
	NSFile:          "File",
	NSFileTalk:      "File talk",
	NSMediaWiki:     "MediaWiki",
	NSMediaWikiTalk: "MediaWiki talk",
	NSTemplate:      "Template",
	NSTemplateTalk:  "Template talk",
	NSHelp:          "Help",
	NSHelpTalk:      "Help talk",
	NSCategory:      "Category",
	NSCategoryTalk:  "Category talk",
}

// defaultNamespaceAliases covers the legacy names still accepted everywhere.
var defaultNamespaceAliases = map[string]int{
	"Image":      NSFile,
	"Image talk": NSFileTalk,
}

// normalizeNamespaceName folds a namespace name for lookups: underscores
// become spaces and comparison is case-insensitive.
func normalizeNamespaceName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	return strings.ToLower(name)
}

// splitTitle returns the namespace-like prefix and the rest of a title.
// A title with no colon, or one that is nothing but a prefix ("Category"),
// has no prefix.
func splitTitle(title string) (prefix, body string) {
	idx := strings.Index(title, ":")
	if idx <= 0 || idx == len(title)-1 {
		return "", title
	}
	return title[:idx], title[idx+1:]
}
