package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/olgasafonova/wikibot/irc"
	"github.com/olgasafonova/wikibot/wiki"
)

// Status reports what the bot is running against and for how long.
type Status struct {
	site    *wiki.Site
	started time.Time
	version string
}

func NewStatus(site *wiki.Site, version string) *Status {
	return &Status{
		site:    site,
		started: time.Now(),
		version: version,
	}
}

func (s *Status) Name() string { return "status" }

func (s *Status) Triggers() []string { return []string{"status", "uptime"} }

func (s *Status) Run(ctx context.Context, msg *irc.Message) (string, error) {
	uptime := time.Since(s.started).Round(time.Second)
	return fmt.Sprintf("%s: wikibot %s, up %s, editing via %s",
		msg.Nick, s.version, uptime, s.site.Config().APIURL), nil
}

// Help lists the registered commands.
type Help struct {
	registry *Registry
}

func NewHelp(registry *Registry) *Help {
	return &Help{registry: registry}
}

func (h *Help) Name() string { return "help" }

func (h *Help) Triggers() []string { return []string{"help", "commands"} }

func (h *Help) Run(ctx context.Context, msg *irc.Message) (string, error) {
	reply := msg.Nick + ": I know"
	for i, cmd := range h.registry.Commands() {
		if i > 0 {
			reply += ","
		}
		reply += " " + cmd.Triggers()[0]
	}
	return reply, nil
}
