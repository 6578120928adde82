package wiki

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"github.com/olgasafonova/wikibot/metrics"
)

// EditOptions carries the optional flags of an edit submission.
type EditOptions struct {
	// Minor marks the edit as minor.
	Minor bool
	// Bot marks the edit as a bot edit (honored only if the account has a
	// bot flag).
	Bot bool
	// Force drops the conflict-detection guards and pushes the content even
	// if the page changed, was deleted, or was recreated since we read it.
	Force bool
}

// editOutcome is the typed classification of a remote edit rejection code.
type editOutcome int

const (
	outcomeUnknown editOutcome = iota
	outcomePermissions
	outcomeRetryLogin
	outcomeConflict
	outcomeNoContent
	outcomeTooBig
	outcomeSpam
	outcomeFiltered
)

// classifyEditCode maps a remote rejection code to its outcome. Pure; every
// unlisted code is outcomeUnknown and surfaces as a generic EditError with
// the raw diagnostic preserved.
func classifyEditCode(code string) editOutcome {
	switch code {
	case "noedit", "cantcreate", "protectedtitle", "noimageredirect":
		return outcomePermissions
	case "noedit-anon", "cantcreate-anon", "noimageredirect-anon":
		return outcomeRetryLogin
	case "editconflict", "pagedeleted", "articleexists":
		return outcomeConflict
	case "emptypage", "emptynewsection":
		return outcomeNoContent
	case "contenttoobig":
		return outcomeTooBig
	case "spamdetected":
		return outcomeSpam
	case "filtered":
		return outcomeFiltered
	}
	return outcomeUnknown
}

// Edit replaces the page's content, or creates the page if it is missing.
// Unless opts.Force is set, the submission carries guards that make the wiki
// reject it if the page changed remotely since we last observed it.
func (p *Page) Edit(ctx context.Context, text, summary string, opts EditOptions) error {
	return p.edit(ctx, text, summary, "", opts)
}

// AddSection appends a new section with the given title to the bottom of the
// page, creating the page if it does not exist.
func (p *Page) AddSection(ctx context.Context, text, title string, opts EditOptions) error {
	return p.edit(ctx, text, title, "new", opts)
}

// edit runs the transaction: obtain a token, build the guarded request,
// submit, and classify the response. Exactly one automatic recovery is
// allowed per call - a login retry when the wiki says we are anonymous -
// bounded by the explicit attempt loop.
func (p *Page) edit(ctx context.Context, text, summary, section string, opts EditOptions) error {
	for attempt := 0; attempt <= 1; attempt++ {
		if p.token == "" {
			if err := p.loadAttributes(ctx); err != nil {
				return err
			}
		}
		if p.token == "" {
			metrics.EditsTotal.WithLabelValues("permissions").Inc()
			return &PermissionsError{Reason: fmt.Sprintf("no edit token for %q; the account cannot edit this page", p.title)}
		}

		// Weed out invalid titles before going remote.
		if err := p.assertValidity(); err != nil {
			return err
		}

		params := p.buildEditParams(text, summary, section, opts)

		result, err := p.site.APIQuery(ctx, params)
		if err != nil {
			var apiErr *SiteAPIError
			if !errors.As(err, &apiErr) {
				return err
			}
			retry, herr := p.handleEditError(apiErr, attempt)
			if herr != nil {
				return herr
			}
			if retry {
				p.loginForRetry(ctx)
				continue
			}
		}

		edit := getMap(result["edit"])
		if getString(edit["result"]) == "Success" {
			// Remote truth may have changed shape (a first edit creates a
			// missing page), so cached state is re-derived lazily.
			p.clearContent()
			p.exists = ExistenceUnknown
			p.token = ""
			metrics.EditsTotal.WithLabelValues("success").Inc()
			return nil
		}

		// A non-Success result without an AssertEdit marker means something
		// odd is going on; keep the raw response for diagnostics.
		assertion := getString(edit["assert"])
		if assertion == "" {
			metrics.EditsTotal.WithLabelValues("error").Inc()
			return &EditError{Code: "editfailed", Info: fmt.Sprintf("%v", edit)}
		}

		retry, herr := p.handleAssertFailure(assertion, attempt)
		if herr != nil {
			return herr
		}
		if retry {
			p.loginForRetry(ctx)
			continue
		}
	}

	// Unreachable: the second iteration never asks for another retry.
	return &LoginError{Reason: "edit retry budget exhausted"}
}

// loginForRetry logs in before the single retry. The login capability has no
// failure contract beyond what the retried submission reveals, so errors are
// logged and the retry proceeds; a second rejection becomes LoginError.
func (p *Page) loginForRetry(ctx context.Context) {
	if err := p.site.Login(ctx); err != nil {
		p.site.logger.Warn("Login before edit retry failed", "title", p.title, "error", err)
	}
	p.token = "" // the old token died with the old session
}

// buildEditParams assembles the edit submission. The md5 checksum guards
// content integrity in transit; the timestamps and create-guard detect races
// with concurrent remote edits unless the caller forces the edit through.
func (p *Page) buildEditParams(text, summary, section string, opts EditOptions) url.Values {
	sum := md5.Sum([]byte(text)) // integrity checksum, not a security boundary

	params := url.Values{}
	params.Set("action", "edit")
	params.Set("title", p.title)
	params.Set("text", text)
	params.Set("token", p.token)
	params.Set("summary", summary)
	params.Set("md5", hex.EncodeToString(sum[:]))

	if section != "" {
		params.Set("section", section)
	}
	if opts.Minor {
		params.Set("minor", "true")
	} else {
		params.Set("notminor", "true")
	}
	if opts.Bot {
		params.Set("bot", "true")
	}

	if !opts.Force {
		params.Set("starttimestamp", p.startTimestamp)
		if p.baseTimestamp != "" {
			params.Set("basetimestamp", p.baseTimestamp)
		}
		if p.exists == ExistenceMissing {
			// The page does not exist as far as we know; refuse to clobber
			// one created concurrently.
			params.Set("createonly", "true")
		}
	} else {
		params.Set("recreate", "true")
	}

	return params
}

// handleEditError classifies a structured rejection. It returns retry=true
// only for the anonymous-permission family on the first attempt.
func (p *Page) handleEditError(apiErr *SiteAPIError, attempt int) (retry bool, err error) {
	switch classifyEditCode(apiErr.Code) {
	case outcomePermissions:
		metrics.EditsTotal.WithLabelValues("permissions").Inc()
		return false, &PermissionsError{Reason: apiErr.Info}

	case outcomeRetryLogin:
		if !p.site.HasCredentials() {
			metrics.EditsTotal.WithLabelValues("permissions").Inc()
			return false, &PermissionsError{Reason: apiErr.Info}
		}
		if attempt == 0 {
			return true, nil
		}
		metrics.EditsTotal.WithLabelValues("login").Inc()
		return false, &LoginError{Reason: "still anonymous after logging in; the session or credentials are broken"}

	case outcomeConflict:
		// Our observations are now known-stale; the caller must re-read.
		p.clearContent()
		p.exists = ExistenceUnknown
		metrics.EditsTotal.WithLabelValues("conflict").Inc()
		return false, &EditConflictError{Code: apiErr.Code, Info: apiErr.Info}

	case outcomeNoContent:
		metrics.EditsTotal.WithLabelValues("nocontent").Inc()
		return false, &NoContentError{Info: apiErr.Info}

	case outcomeTooBig:
		metrics.EditsTotal.WithLabelValues("toobig").Inc()
		return false, &ContentTooBigError{Info: apiErr.Info}

	case outcomeSpam:
		metrics.EditsTotal.WithLabelValues("spam").Inc()
		return false, &SpamDetectedError{Info: apiErr.Info}

	case outcomeFiltered:
		metrics.EditsTotal.WithLabelValues("filtered").Inc()
		return false, &FilteredError{Info: apiErr.Info}
	}

	metrics.EditsTotal.WithLabelValues("error").Inc()
	return false, &EditError{Code: apiErr.Code, Info: apiErr.Info}
}

// handleAssertFailure handles an AssertEdit failure: the request was
// well-formed but a stated precondition about the session failed. A failed
// "user" assertion follows the same one-retry login policy as the anonymous
// rejection codes; a failed "bot" assertion is not recoverable.
func (p *Page) handleAssertFailure(assertion string, attempt int) (retry bool, err error) {
	switch assertion {
	case "user":
		if !p.site.HasCredentials() {
			metrics.EditsTotal.WithLabelValues("permissions").Inc()
			return false, &PermissionsError{Reason: "user assertion failed and no login credentials are configured"}
		}
		if attempt == 0 {
			return true, nil
		}
		metrics.EditsTotal.WithLabelValues("login").Inc()
		return false, &LoginError{Reason: "user assertion still failing after logging in"}

	case "bot":
		metrics.EditsTotal.WithLabelValues("permissions").Inc()
		return false, &PermissionsError{Reason: "bot assertion failed; the account has no bot flag"}
	}

	metrics.EditsTotal.WithLabelValues("permissions").Inc()
	return false, &PermissionsError{Reason: fmt.Sprintf("assertion %q failed", assertion)}
}
