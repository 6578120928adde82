// Package irc connects the bot to IRC twice over: a frontend connection
// where users talk to the bot, and a watcher connection that follows a
// wiki's recent-changes feed.
package irc

import "strings"

// Message is one PRIVMSG aimed at the bot, with the command trigger
// already parsed out if there is one.
type Message struct {
	Nick string // sender's nick
	Host string // sender's host
	Chan string // channel the message arrived on; empty for private messages

	Text string // full message text

	Command string   // parsed command name, lowercased; empty if not a command
	Args    []string // whitespace-split arguments after the command
}

// Private reports whether the message was sent directly to the bot rather
// than to a channel.
func (m *Message) Private() bool {
	return m.Chan == ""
}

// ReplyTarget returns where a response to this message should go.
func (m *Message) ReplyTarget() string {
	if m.Private() {
		return m.Nick
	}
	return m.Chan
}

// NewMessage builds a Message and parses the command trigger. In a channel
// the bot answers to "!cmd" and to its own nick ("botnick: cmd" or
// "botnick, cmd"); in private everything said is a command.
func NewMessage(botNick, nick, host, target, text string) *Message {
	m := &Message{
		Nick: nick,
		Host: host,
		Text: text,
	}
	if !strings.EqualFold(target, botNick) {
		m.Chan = target
	}

	rest, triggered := stripTrigger(botNick, text, m.Private())
	if !triggered {
		return m
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return m
	}
	m.Command = strings.ToLower(fields[0])
	m.Args = fields[1:]
	return m
}

func stripTrigger(botNick, text string, private bool) (string, bool) {
	if strings.HasPrefix(text, "!") && len(text) > 1 {
		return text[1:], true
	}
	for _, sep := range []string{":", ","} {
		prefix := botNick + sep
		if len(text) > len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			return text[len(prefix):], true
		}
	}
	if private {
		return text, true
	}
	return "", false
}
