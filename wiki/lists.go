package wiki

import (
	"context"
	"fmt"
	"net/url"
)

// PageRef is a title and its namespace as returned by the API's list
// queries, enough to construct a Page lazily.
type PageRef struct {
	Title     string
	Namespace int
}

// Backlinks returns the pages linking to a title, following continuation
// until the list is exhausted. With redirectsOnly set, only redirects to
// the title are returned (useful for finding a template's aliases).
func (s *Site) Backlinks(ctx context.Context, title string, redirectsOnly bool) ([]PageRef, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "backlinks")
	params.Set("bltitle", title)
	params.Set("bllimit", "500")
	if redirectsOnly {
		params.Set("blfilterredir", "redirects")
	}
	return s.listQuery(ctx, params, "backlinks", "blcontinue")
}

// CategoryMembers returns the members of a category, following
// continuation until the list is exhausted.
func (s *Site) CategoryMembers(ctx context.Context, category string) ([]PageRef, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "categorymembers")
	params.Set("cmtitle", category)
	params.Set("cmlimit", "500")
	return s.listQuery(ctx, params, "categorymembers", "cmcontinue")
}

// listQuery runs a list-generating query, collecting PageRefs across
// continuation batches.
func (s *Site) listQuery(ctx context.Context, params url.Values, listName, continueKey string) ([]PageRef, error) {
	var refs []PageRef
	for {
		result, err := s.APIQuery(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("%s query failed: %w", listName, err)
		}

		for _, entryData := range getSlice(getMap(result["query"])[listName]) {
			entry := getMap(entryData)
			if entry == nil {
				continue
			}
			refs = append(refs, PageRef{
				Title:     getString(entry["title"]),
				Namespace: getInt(entry["ns"]),
			})
		}

		cont := getString(getMap(getMap(result["query-continue"])[listName])[continueKey])
		if cont == "" {
			return refs, nil
		}
		params.Set(continueKey, cont)
	}
}
