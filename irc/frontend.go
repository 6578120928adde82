package irc

import (
	"context"
	"fmt"
	"log/slog"

	ircevent "github.com/thoj/go-ircevent"

	"github.com/olgasafonova/wikibot/metrics"
)

// ConnConfig holds the connection settings shared by both IRC components.
type ConnConfig struct {
	Server   string // host:port
	Nick     string
	Ident    string
	Channels []string
	UseTLS   bool
}

// Handler produces the bot's reply to a parsed message. An empty reply
// means stay silent.
type Handler func(ctx context.Context, msg *Message) string

// Frontend is the bot's user-facing IRC connection. Incoming messages are
// parsed for command triggers and handed to the Handler; its reply goes
// back to the channel or nick the message came from.
type Frontend struct {
	cfg     ConnConfig
	logger  *slog.Logger
	handler Handler
	conn    *ircevent.Connection
}

func NewFrontend(cfg ConnConfig, logger *slog.Logger, handler Handler) *Frontend {
	return &Frontend{
		cfg:     cfg,
		logger:  logger.With("component", "frontend"),
		handler: handler,
	}
}

// Run connects and processes messages until ctx is cancelled or the
// connection dies.
func (f *Frontend) Run(ctx context.Context) error {
	conn := ircevent.IRC(f.cfg.Nick, f.cfg.Ident)
	conn.UseTLS = f.cfg.UseTLS
	conn.QuitMessage = "shutting down"

	conn.AddCallback("001", func(e *ircevent.Event) {
		f.logger.Info("Connected to IRC", "server", f.cfg.Server)
		for _, channel := range f.cfg.Channels {
			conn.Join(channel)
		}
	})

	conn.AddCallback("PRIVMSG", func(e *ircevent.Event) {
		metrics.IRCLinesIn.WithLabelValues("frontend").Inc()
		if len(e.Arguments) < 2 {
			return
		}
		msg := NewMessage(f.cfg.Nick, e.Nick, e.Host, e.Arguments[0], e.Message())
		if msg.Command == "" {
			return
		}
		go func() {
			if reply := f.handler(ctx, msg); reply != "" {
				f.Say(msg.ReplyTarget(), reply)
			}
		}()
	})

	if err := conn.Connect(f.cfg.Server); err != nil {
		return fmt.Errorf("frontend connect to %s failed: %w", f.cfg.Server, err)
	}
	f.conn = conn

	go func() {
		<-ctx.Done()
		conn.Quit()
	}()

	conn.Loop()
	return nil
}

// Say sends a message to a channel or nick.
func (f *Frontend) Say(target, text string) {
	if f.conn == nil {
		return
	}
	metrics.IRCLinesOut.WithLabelValues("frontend").Inc()
	f.conn.Privmsg(target, text)
}

// Notice sends an IRC notice to a channel or nick.
func (f *Frontend) Notice(target, text string) {
	if f.conn == nil {
		return
	}
	metrics.IRCLinesOut.WithLabelValues("frontend").Inc()
	f.conn.Notice(target, text)
}
