package irc

import (
	"context"
	"fmt"
	"log/slog"

	ircevent "github.com/thoj/go-ircevent"

	"github.com/olgasafonova/wikibot/metrics"
)

// RCHandler receives each parsed recent-changes event.
type RCHandler func(ctx context.Context, event *RCEvent)

// Watcher follows a wiki's recent-changes IRC feed and hands each parsed
// event to its handler. The feed server broadcasts only; the watcher never
// speaks on this connection.
type Watcher struct {
	cfg     ConnConfig
	logger  *slog.Logger
	handler RCHandler
}

func NewWatcher(cfg ConnConfig, logger *slog.Logger, handler RCHandler) *Watcher {
	return &Watcher{
		cfg:     cfg,
		logger:  logger.With("component", "watcher"),
		handler: handler,
	}
}

// Run connects and processes feed lines until ctx is cancelled or the
// connection dies.
func (w *Watcher) Run(ctx context.Context) error {
	conn := ircevent.IRC(w.cfg.Nick, w.cfg.Ident)
	conn.UseTLS = w.cfg.UseTLS

	conn.AddCallback("001", func(e *ircevent.Event) {
		w.logger.Info("Connected to recent-changes feed", "server", w.cfg.Server)
		for _, channel := range w.cfg.Channels {
			conn.Join(channel)
		}
	})

	conn.AddCallback("PRIVMSG", func(e *ircevent.Event) {
		metrics.IRCLinesIn.WithLabelValues("watcher").Inc()
		if len(e.Arguments) < 2 {
			return
		}
		event, err := ParseRC(e.Message())
		if err != nil {
			// The feed carries occasional notices that are not change
			// entries; skip them quietly.
			w.logger.Debug("Skipping feed line", "error", err)
			return
		}
		metrics.RCEventsTotal.Inc()
		w.handler(ctx, event)
	})

	if err := conn.Connect(w.cfg.Server); err != nil {
		return fmt.Errorf("watcher connect to %s failed: %w", w.cfg.Server, err)
	}

	go func() {
		<-ctx.Done()
		conn.Quit()
	}()

	conn.Loop()
	return nil
}
