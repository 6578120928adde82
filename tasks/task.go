// Package tasks implements the bot's scheduled and on-demand wiki tasks.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/olgasafonova/wikibot/metrics"
	"github.com/olgasafonova/wikibot/tracing"
	"github.com/olgasafonova/wikibot/wiki"
)

// Task is one bot task. Tasks are numbered for on-wiki bookkeeping: the
// number appears in edit summaries and in the shutoff page title.
type Task interface {
	Name() string
	Number() int
	Run(ctx context.Context, env *Env, args Args) error
}

// Args carries a task run's arguments, parsed from the schedule config or
// the command line.
type Args map[string]string

// Env is what every task run gets to work with.
type Env struct {
	Site   *wiki.Site
	Logger *slog.Logger

	// SummaryTemplate wraps task edit summaries; $1 is the task number and
	// $2 the summary body. Empty means use the body as-is.
	SummaryTemplate string

	// ShutoffPage is the title of the on-wiki emergency shutoff page; $1 is
	// the bot's username and $2 the task number. Empty disables the check.
	ShutoffPage string

	// ShutoffDisabled is the page content meaning "shutoff NOT engaged".
	ShutoffDisabled string
}

// Summary builds the edit summary for a task from the configured template.
func (e *Env) Summary(taskNumber int, comment string) string {
	if e.SummaryTemplate == "" {
		return comment
	}
	summary := strings.ReplaceAll(e.SummaryTemplate, "$1", strconv.Itoa(taskNumber))
	return strings.ReplaceAll(summary, "$2", comment)
}

// ShutoffEnabled checks the task's on-wiki emergency shutoff page. Shutoff
// is engaged when the page exists with any content other than the expected
// "keep running" marker; a missing page means run normally, so the check
// fails open for pages nobody ever created.
func (e *Env) ShutoffEnabled(ctx context.Context, taskNumber int) (bool, error) {
	if e.ShutoffPage == "" {
		return false, nil
	}

	title := strings.ReplaceAll(e.ShutoffPage, "$1", e.Site.Config().BotName())
	title = strings.ReplaceAll(title, "$2", strconv.Itoa(taskNumber))

	content, err := e.Site.Page(title).Get(ctx)
	if err != nil {
		var notFound *wiki.PageNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}

	disabled := e.ShutoffDisabled
	if disabled == "" {
		disabled = "run"
	}
	if strings.TrimSpace(content) == disabled {
		return false, nil
	}

	e.Logger.Warn("Emergency task shutoff is enabled", "page", title)
	return true, nil
}

// ErrShutoff stops a task run because the on-wiki shutoff is engaged.
var ErrShutoff = errors.New("on-wiki task shutoff is enabled")

// Run executes one task with logging, metrics, and tracing around it.
// A shutoff stop counts as its own outcome, not an error.
func Run(ctx context.Context, env *Env, task Task, args Args) error {
	ctx, span := tracing.StartSpan(ctx, "task.run")
	tracing.AddTaskAttributes(span, task.Name(), task.Number())
	defer span.End()

	logger := env.Logger.With("task", task.Name())
	logger.Info("Task starting", "args", args)

	start := time.Now()
	err := task.Run(ctx, env, args)
	metrics.TaskDuration.WithLabelValues(task.Name()).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrShutoff):
		metrics.TaskRunsTotal.WithLabelValues(task.Name(), "shutoff").Inc()
		logger.Warn("Task stopped by emergency shutoff")
		return nil
	case err != nil:
		metrics.TaskRunsTotal.WithLabelValues(task.Name(), "error").Inc()
		tracing.RecordError(span, err)
		logger.Error("Task failed", "error", err)
		return err
	}

	metrics.TaskRunsTotal.WithLabelValues(task.Name(), "ok").Inc()
	logger.Info("Task finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
