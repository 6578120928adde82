package irc

import "testing"

func TestParseRC_Edit(t *testing.T) {
	line := "\x0314[[\x0307Foo bar\x0314]]\x034 M\x0310 \x0302https://wiki.example.org/w/index.php?diff=123&oldid=122\x03 \x035*\x03 \x0303Alice\x03 \x035*\x03 (\x02+56\x02) \x0310fixed a typo\x03"

	event, err := ParseRC(line)
	if err != nil {
		t.Fatalf("ParseRC failed: %v", err)
	}
	if event.Page != "Foo bar" {
		t.Errorf("Page = %q, want %q", event.Page, "Foo bar")
	}
	if event.Flags != "M" {
		t.Errorf("Flags = %q, want %q", event.Flags, "M")
	}
	if event.URL != "https://wiki.example.org/w/index.php?diff=123&oldid=122" {
		t.Errorf("URL = %q", event.URL)
	}
	if event.User != "Alice" {
		t.Errorf("User = %q, want %q", event.User, "Alice")
	}
	if event.SizeDiff != 56 {
		t.Errorf("SizeDiff = %d, want 56", event.SizeDiff)
	}
	if event.Comment != "fixed a typo" {
		t.Errorf("Comment = %q, want %q", event.Comment, "fixed a typo")
	}
	if !event.Edit() {
		t.Error("Edit() = false for an edit event")
	}
}

func TestParseRC_NegativeDiff(t *testing.T) {
	line := "[[Foo]] !N https://wiki.example.org/w/index.php?diff=5 * Bob * (-1024) blanked"

	event, err := ParseRC(line)
	if err != nil {
		t.Fatalf("ParseRC failed: %v", err)
	}
	if event.SizeDiff != -1024 {
		t.Errorf("SizeDiff = %d, want -1024", event.SizeDiff)
	}
	if event.Flags != "!N" {
		t.Errorf("Flags = %q, want %q", event.Flags, "!N")
	}
}

func TestParseRC_LogEvent(t *testing.T) {
	line := "[[Special:Log/delete]] delete  * Alice * (0) deleted \"[[Old page]]\""

	event, err := ParseRC(line)
	if err != nil {
		t.Fatalf("ParseRC failed: %v", err)
	}
	if event.Page != "Special:Log/delete" {
		t.Errorf("Page = %q", event.Page)
	}
	if event.Flags != "delete" {
		t.Errorf("Flags = %q, want the log action", event.Flags)
	}
	if event.URL != "" {
		t.Errorf("URL = %q, want empty for a log event", event.URL)
	}
	if event.Edit() {
		t.Error("Edit() = true for a log event")
	}
}

func TestParseRC_EmptyComment(t *testing.T) {
	line := "[[Foo]] M https://wiki.example.org/diff * Alice * (+1)"

	event, err := ParseRC(line)
	if err != nil {
		t.Fatalf("ParseRC failed: %v", err)
	}
	if event.Comment != "" {
		t.Errorf("Comment = %q, want empty", event.Comment)
	}
}

func TestParseRC_Garbage(t *testing.T) {
	for _, line := range []string{
		"",
		"the feed server says hello",
		"[[Unclosed title",
	} {
		if _, err := ParseRC(line); err == nil {
			t.Errorf("ParseRC(%q) succeeded, want error", line)
		}
	}
}
