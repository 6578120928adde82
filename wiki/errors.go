package wiki

import "fmt"

// SiteAPIError is a structured rejection from the remote API: the request
// reached the wiki but the wiki refused it with a machine-readable code.
// Transport failures are returned as plain wrapped errors, never as this type.
type SiteAPIError struct {
	Code string
	Info string
}

func (e *SiteAPIError) Error() string {
	return fmt.Sprintf("API error [%s]: %s", e.Code, e.Info)
}

// InvalidPageError indicates a title that can never name a page (e.g. it
// contains "["). Terminal for the life of the title string.
type InvalidPageError struct {
	Title string
}

func (e *InvalidPageError) Error() string {
	return fmt.Sprintf("page %q is invalid", e.Title)
}

// PageNotFoundError indicates a valid title with no page behind it.
type PageNotFoundError struct {
	Title string
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page %q does not exist", e.Title)
}

// RedirectError indicates the wiki marked a page as a redirect but no
// redirect target could be parsed from its content. This is inconsistent
// remote state, not a user error.
type RedirectError struct {
	Title string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("page %q does not appear to have a redirect target", e.Title)
}

// PermissionsError indicates the account lacks the rights for an operation.
// Not retryable: a login attempt has already been ruled out or exhausted.
type PermissionsError struct {
	Reason string
}

func (e *PermissionsError) Error() string {
	return "permission denied: " + e.Reason
}

// LoginError indicates credentials are configured but the wiki still treats
// the session as anonymous after a login attempt.
type LoginError struct {
	Reason string
}

func (e *LoginError) Error() string {
	return "login failed: " + e.Reason
}

// EditConflictError indicates the remote page changed (edited, deleted, or
// created) between our last observation and the edit submission. The caller
// must re-read and resubmit.
type EditConflictError struct {
	Code string
	Info string
}

func (e *EditConflictError) Error() string {
	return fmt.Sprintf("edit conflict [%s]: %s", e.Code, e.Info)
}

// NoContentError indicates the wiki rejected an edit as empty.
type NoContentError struct {
	Info string
}

func (e *NoContentError) Error() string {
	return "no content: " + e.Info
}

// ContentTooBigError indicates the edit exceeded the wiki's size limit.
type ContentTooBigError struct {
	Info string
}

func (e *ContentTooBigError) Error() string {
	return "content too big: " + e.Info
}

// SpamDetectedError indicates the edit tripped the spam filter.
type SpamDetectedError struct {
	Info string
}

func (e *SpamDetectedError) Error() string {
	return "spam detected: " + e.Info
}

// FilteredError indicates the edit was disallowed by an abuse filter.
type FilteredError struct {
	Info string
}

func (e *FilteredError) Error() string {
	return "filtered: " + e.Info
}

// EditError is the catch-all for a remote edit rejection whose code we do
// not recognize. The raw code and detail are preserved for diagnostics.
type EditError struct {
	Code string
	Info string
}

func (e *EditError) Error() string {
	return fmt.Sprintf("edit failed [%s]: %s", e.Code, e.Info)
}

// NamespaceNotFoundError indicates an unrecognized namespace prefix or ID.
type NamespaceNotFoundError struct {
	Prefix string
	ID     int
}

func (e *NamespaceNotFoundError) Error() string {
	if e.Prefix != "" {
		return fmt.Sprintf("no namespace with name %q", e.Prefix)
	}
	return fmt.Sprintf("no namespace with ID %d", e.ID)
}
