package irc

import (
	"fmt"
	"regexp"
	"strconv"
)

// RCEvent is one entry of a wiki's recent-changes IRC feed.
type RCEvent struct {
	Page     string // affected page title, or "user (action)" for log events
	Flags    string // "N" new, "M" minor, "B" bot, "!" unpatrolled, or a log action
	URL      string // diff URL; empty for log events
	User     string // acting username
	SizeDiff int    // byte delta of the edit
	Comment  string // edit summary
}

// Edit reports whether the event is a page edit, as opposed to a log
// action (delete, move, block, ...). Log entries carry no diff URL.
func (e *RCEvent) Edit() bool {
	return e.URL != ""
}

func (e *RCEvent) String() string {
	if e.Edit() {
		return fmt.Sprintf("[[%s]] edited by %s (%+d): %s", e.Page, e.User, e.SizeDiff, e.Comment)
	}
	return fmt.Sprintf("%s by %s: %s", e.Page, e.User, e.Comment)
}

// The feed wraps fields in mIRC formatting codes; strip them before parsing.
var reControlCodes = regexp.MustCompile("\x03(?:\\d{1,2}(?:,\\d{1,2})?)?|[\x02\x0f\x16\x1d\x1f]")

// reRCLine matches a cleaned feed line:
//
//	[[Page]] flags url * user * (+123) comment
var reRCLine = regexp.MustCompile(`^\[\[(.*?)\]\] (\S*) (\S*) \* (.*?) \* \(([+-]?\d+)\) ?(.*)$`)

// ParseRC parses one raw line of the recent-changes feed.
func ParseRC(line string) (*RCEvent, error) {
	clean := reControlCodes.ReplaceAllString(line, "")

	m := reRCLine.FindStringSubmatch(clean)
	if m == nil {
		return nil, fmt.Errorf("unparseable recent-changes line: %q", clean)
	}

	diff, err := strconv.Atoi(m[5])
	if err != nil {
		return nil, fmt.Errorf("bad size delta in recent-changes line: %w", err)
	}

	return &RCEvent{
		Page:     m[1],
		Flags:    m[2],
		URL:      m[3],
		User:     m[4],
		SizeDiff: diff,
		Comment:  m[6],
	}, nil
}
