// Package scheduler regenerates recurring tasks. A completed task with a
// recurrence respawns as a fresh uncompleted copy once its interval has
// elapsed; the old task loses its recurrence so it never respawns twice.
//
// The generator runs once at startup and then daily at midnight UTC.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jkaninda/kazi/internal/domain"
)

// CronSpec is the daily midnight schedule.
const CronSpec = "0 0 * * *"

// TaskSource is the slice of the task store the generator needs.
type TaskSource interface {
	ListRecurring(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, userID string, id int64, patch domain.TaskPatch) (*domain.Task, error)
}

// Generator respawns completed recurring tasks on a daily schedule.
type Generator struct {
	tasks   TaskSource
	metrics *Metrics
	logger  *slog.Logger
	cron    *cron.Cron
	now     func() time.Time
}

// New creates a Generator.
func New(tasks TaskSource, metrics *Metrics, logger *slog.Logger) *Generator {
	return &Generator{
		tasks:   tasks,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock in tests.
func (g *Generator) SetNowFunc(now func() time.Time) { g.now = now }

// Start runs the generator once immediately, schedules the daily run, and
// returns a stop function.
func (g *Generator) Start(ctx context.Context) (func(), error) {
	g.Run(ctx)

	g.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := g.cron.AddFunc(CronSpec, func() { g.Run(ctx) })
	if err != nil {
		return nil, err
	}
	g.cron.Start()

	g.logger.Info("recurring task generator started", slog.String("schedule", CronSpec))

	return func() {
		stopCtx := g.cron.Stop()
		<-stopCtx.Done()
		g.logger.Info("recurring task generator stopped")
	}, nil
}

// Run executes a single generation pass.
func (g *Generator) Run(ctx context.Context) {
	start := g.now()
	now := start.UTC()

	tasks, err := g.tasks.ListRecurring(ctx)
	if err != nil {
		g.logger.ErrorContext(ctx, "listing recurring tasks failed", slog.String("error", err.Error()))
		if g.metrics != nil {
			g.metrics.RunFailures.Inc()
		}
		return
	}

	respawned := 0
	for i := range tasks {
		t := tasks[i]
		if !ShouldRespawn(&t, now) {
			continue
		}
		if err := g.respawn(ctx, &t, now); err != nil {
			g.logger.ErrorContext(ctx, "respawning task failed",
				slog.Int64("task_id", t.ID),
				slog.String("user_id", t.UserID),
				slog.String("error", err.Error()),
			)
			if g.metrics != nil {
				g.metrics.RunFailures.Inc()
			}
			continue
		}
		respawned++
	}

	if respawned > 0 {
		g.logger.InfoContext(ctx, "recurring tasks respawned", slog.Int("count", respawned))
	}
	if g.metrics != nil {
		g.metrics.TasksRespawned.Add(float64(respawned))
		g.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}
}

// respawn creates the next occurrence and strips the recurrence from the
// completed task, in that order, so a crash in between cannot lose the
// recurrence entirely.
func (g *Generator) respawn(ctx context.Context, t *domain.Task, now time.Time) error {
	next := domain.Task{
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Tags:        append([]string(nil), t.Tags...),
		DueDate:     NextDue(t, now),
		Recurrence:  t.Recurrence,
	}
	if err := g.tasks.Create(ctx, &next); err != nil {
		return err
	}

	none := domain.RecurrenceNone
	_, err := g.tasks.Update(ctx, t.UserID, t.ID, domain.TaskPatch{Recurrence: &none})
	return err
}

// ShouldRespawn reports whether a completed recurring task's interval has
// elapsed. The reference time is the due date when set, otherwise the
// creation time.
func ShouldRespawn(t *domain.Task, now time.Time) bool {
	if t.Recurrence == "" || !t.Completed {
		return false
	}

	ref := t.CreatedAt
	if t.DueDate != nil {
		ref = *t.DueDate
	}
	ref = ref.UTC()
	now = now.UTC()

	switch t.Recurrence {
	case domain.RecurrenceDaily:
		// A daily task respawns once its reference day is behind today.
		return ref.Truncate(24 * time.Hour).Before(now.Truncate(24 * time.Hour))
	case domain.RecurrenceWeekly:
		return now.Sub(ref) >= 7*24*time.Hour
	case domain.RecurrenceMonthly:
		return now.Sub(ref) >= 30*24*time.Hour
	default:
		return false
	}
}

// NextDue computes the next occurrence's due date. Tasks without a due date
// stay without one.
func NextDue(t *domain.Task, _ time.Time) *time.Time {
	if t.DueDate == nil {
		return nil
	}
	var next time.Time
	switch t.Recurrence {
	case domain.RecurrenceDaily:
		next = t.DueDate.AddDate(0, 0, 1)
	case domain.RecurrenceWeekly:
		next = t.DueDate.AddDate(0, 0, 7)
	case domain.RecurrenceMonthly:
		next = t.DueDate.AddDate(0, 0, 30)
	default:
		return nil
	}
	next = next.UTC()
	return &next
}
