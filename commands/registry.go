// Package commands implements the bot's IRC commands and the registry that
// dispatches incoming messages to them.
package commands

import (
	"context"
	"log/slog"

	"github.com/olgasafonova/wikibot/irc"
	"github.com/olgasafonova/wikibot/metrics"
)

// Command is one IRC command. A command may answer to several trigger
// words ("define", "dict", ...).
type Command interface {
	Name() string
	Triggers() []string
	// Run produces the reply for a triggered message. An empty reply with
	// a nil error means stay silent.
	Run(ctx context.Context, msg *irc.Message) (string, error)
}

// Registry maps trigger words to commands and dispatches messages.
type Registry struct {
	logger    *slog.Logger
	byTrigger map[string]Command
	commands  []Command
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		byTrigger: make(map[string]Command),
	}
}

// Register adds a command under all of its triggers. A later registration
// takes over a contested trigger.
func (r *Registry) Register(cmd Command) {
	r.commands = append(r.commands, cmd)
	for _, trigger := range cmd.Triggers() {
		r.byTrigger[trigger] = cmd
	}
}

// Commands returns the registered commands in registration order.
func (r *Registry) Commands() []Command {
	return r.commands
}

// Dispatch routes a triggered message to its command and returns the
// reply. Unknown triggers are ignored silently so the bot does not pollute
// channels where another bot answers them.
func (r *Registry) Dispatch(ctx context.Context, msg *irc.Message) string {
	cmd, ok := r.byTrigger[msg.Command]
	if !ok {
		return ""
	}

	reply, err := cmd.Run(ctx, msg)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(cmd.Name(), "error").Inc()
		r.logger.Error("Command failed",
			"command", cmd.Name(),
			"nick", msg.Nick,
			"error", err)
		return msg.Nick + ": sorry, something went wrong with that."
	}

	metrics.CommandsTotal.WithLabelValues(cmd.Name(), "ok").Inc()
	return reply
}

// Handler adapts the registry for the IRC frontend.
func (r *Registry) Handler() irc.Handler {
	return func(ctx context.Context, msg *irc.Message) string {
		return r.Dispatch(ctx, msg)
	}
}
