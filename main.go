// Command wikibot runs the bot: an IRC frontend for interactive
// commands, a recent-changes watcher, and scheduled wiki tasks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/olgasafonova/wikibot/bot"
	"github.com/olgasafonova/wikibot/tasks"
	"github.com/olgasafonova/wikibot/tracing"
	"github.com/olgasafonova/wikibot/wiki"
)

const Version = "1.0.0"

func main() {
	configPath := flag.String("config", "wikibot.yml", "path to the bot config file")
	taskName := flag.String("task", "", "run a single task and exit instead of starting the bot")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	wikiCfg, err := wiki.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load wiki configuration: %v", err)
	}

	botCfg, err := bot.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load bot configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.ServiceVersion = Version
	shutdownTracing, err := tracing.Setup(ctx, tracingCfg)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	b := bot.New(botCfg, wikiCfg, logger, Version)

	if *taskName != "" {
		if err := runSingleTask(ctx, b, logger, *taskName, flag.Args()); err != nil {
			log.Fatalf("Task %s failed: %v", *taskName, err)
		}
		return
	}

	logger.Info("Starting wikibot", "version", Version, "wiki", wikiCfg.APIURL)
	if err := b.Run(ctx); err != nil {
		log.Fatalf("Bot exited with error: %v", err)
	}
	logger.Info("Bot stopped")
}

// runSingleTask runs one task outside the scheduler. Remaining command
// line arguments are parsed as key=value task arguments.
func runSingleTask(ctx context.Context, b *bot.Bot, logger *slog.Logger, name string, rawArgs []string) error {
	args := make(tasks.Args, len(rawArgs))
	for _, raw := range rawArgs {
		key, value, found := strings.Cut(raw, "=")
		if !found || key == "" {
			return fmt.Errorf("bad task argument %q, want key=value", raw)
		}
		args[key] = value
	}

	site := b.Site()
	if site.HasCredentials() {
		if err := site.Login(ctx); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}
	if err := site.LoadNamespaces(ctx); err != nil {
		logger.Warn("Could not load namespaces; using built-in defaults", "error", err)
	}

	logger.Info("Running task", "task", name, "args", args)
	return b.RunTask(ctx, name, args)
}
