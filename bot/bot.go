// Package bot assembles and supervises the bot's components: the wiki
// site handle, the IRC frontend and recent-changes watcher, the command
// registry, the task scheduler, and the metrics endpoint.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/olgasafonova/wikibot/commands"
	"github.com/olgasafonova/wikibot/irc"
	"github.com/olgasafonova/wikibot/tasks"
	"github.com/olgasafonova/wikibot/wiki"
)

// Bot owns the components and their lifecycle.
type Bot struct {
	cfg     *Config
	logger  *slog.Logger
	version string

	site     *wiki.Site
	registry *commands.Registry
	frontend *irc.Frontend
	watcher  *irc.Watcher
	cron     *cron.Cron

	taskEnv *tasks.Env
	tasks   map[string]tasks.Task
}

// New wires up a Bot from its configs. Nothing connects anywhere until Run.
func New(cfg *Config, wikiCfg *wiki.Config, logger *slog.Logger, version string) *Bot {
	site := wiki.NewSite(wikiCfg, logger)

	registry := commands.NewRegistry(logger)
	if cfg.WiktionaryAPIURL != "" {
		dictCfg := *wikiCfg
		dictCfg.APIURL = cfg.WiktionaryAPIURL
		dictCfg.Username = ""
		dictCfg.Password = ""
		registry.Register(commands.NewDefine(wiki.NewSite(&dictCfg, logger), logger))
	}
	registry.Register(commands.NewStatus(site, version))
	registry.Register(commands.NewHelp(registry))

	b := &Bot{
		cfg:      cfg,
		logger:   logger,
		version:  version,
		site:     site,
		registry: registry,
		taskEnv: &tasks.Env{
			Site:            site,
			Logger:          logger,
			SummaryTemplate: cfg.Tasks.Summary,
			ShutoffPage:     cfg.Tasks.Shutoff.Page,
			ShutoffDisabled: cfg.Tasks.Shutoff.Disabled,
		},
		tasks: make(map[string]tasks.Task),
	}

	b.RegisterTask(&tasks.BannerTagger{})

	if cfg.Frontend.Enabled {
		b.frontend = irc.NewFrontend(irc.ConnConfig{
			Server:   cfg.Frontend.Server,
			Nick:     cfg.Frontend.Nick,
			Ident:    cfg.Frontend.Ident,
			Channels: cfg.Frontend.Channels,
			UseTLS:   cfg.Frontend.UseTLS,
		}, logger, registry.Handler())
	}
	if cfg.Watcher.Enabled {
		b.watcher = irc.NewWatcher(irc.ConnConfig{
			Server:   cfg.Watcher.Server,
			Nick:     cfg.Watcher.Nick,
			Ident:    cfg.Watcher.Ident,
			Channels: cfg.Watcher.Channels,
			UseTLS:   cfg.Watcher.UseTLS,
		}, logger, b.handleRCEvent)
	}

	return b
}

// Site returns the bot's primary wiki site handle.
func (b *Bot) Site() *wiki.Site {
	return b.site
}

// RegisterTask makes a task available to the scheduler and RunTask.
func (b *Bot) RegisterTask(task tasks.Task) {
	b.tasks[task.Name()] = task
}

// RunTask runs one registered task by name, outside any schedule.
func (b *Bot) RunTask(ctx context.Context, name string, args tasks.Args) error {
	task, ok := b.tasks[name]
	if !ok {
		return fmt.Errorf("no task named %q", name)
	}
	return tasks.Run(ctx, b.taskEnv, task, args)
}

// handleRCEvent announces watched edits on the frontend's report channel.
func (b *Bot) handleRCEvent(ctx context.Context, event *irc.RCEvent) {
	if b.frontend == nil || b.cfg.Watcher.ReportChannel == "" {
		return
	}
	if !event.Edit() {
		return
	}
	b.frontend.Say(b.cfg.Watcher.ReportChannel, event.String())
}

// Run connects everything and blocks until ctx is cancelled or a
// component dies. Startup is best-effort where it can be: a failed login
// leaves the bot read-only rather than dead.
func (b *Bot) Run(ctx context.Context) error {
	if b.site.HasCredentials() {
		if err := b.site.Login(ctx); err != nil {
			b.logger.Warn("Login failed; continuing without a session", "error", err)
		}
	}
	if err := b.site.LoadNamespaces(ctx); err != nil {
		b.logger.Warn("Could not load namespaces; using built-in defaults", "error", err)
	}

	errCh := make(chan error, 3)

	var metricsServer *http.Server
	if b.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: b.cfg.Metrics.Addr, Handler: mux}
		go func() {
			b.logger.Info("Serving metrics", "addr", b.cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	if err := b.startScheduler(ctx); err != nil {
		return err
	}

	if b.frontend != nil {
		go func() {
			if err := b.frontend.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}
	if b.watcher != nil {
		go func() {
			if err := b.watcher.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	b.logger.Info("Bot is up",
		"frontend", b.frontend != nil,
		"watcher", b.watcher != nil,
		"scheduled_tasks", len(b.cfg.Tasks.Schedule))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		b.logger.Error("Component failed, shutting down", "error", runErr)
	}

	if b.cron != nil {
		<-b.cron.Stop().Done()
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	return runErr
}

// startScheduler registers the configured schedule with cron and starts it.
func (b *Bot) startScheduler(ctx context.Context) error {
	if len(b.cfg.Tasks.Schedule) == 0 {
		return nil
	}

	b.cron = cron.New()
	for _, entry := range b.cfg.Tasks.Schedule {
		task, ok := b.tasks[entry.Task]
		if !ok {
			return fmt.Errorf("schedule references unknown task %q", entry.Task)
		}
		args := tasks.Args(entry.Args)
		if _, err := b.cron.AddFunc(entry.Cron, func() {
			_ = tasks.Run(ctx, b.taskEnv, task, args)
		}); err != nil {
			return fmt.Errorf("bad cron expression %q for task %s: %w", entry.Cron, entry.Task, err)
		}
		b.logger.Info("Scheduled task", "task", entry.Task, "cron", entry.Cron)
	}
	b.cron.Start()
	return nil
}
