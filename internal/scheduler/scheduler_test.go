package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jkaninda/kazi/internal/domain"
	"github.com/jkaninda/kazi/internal/task"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestShouldRespawn(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task domain.Task
		want bool
	}{
		{
			name: "daily due yesterday",
			task: domain.Task{Completed: true, Recurrence: domain.RecurrenceDaily, DueDate: datePtr(2026, 3, 14)},
			want: true,
		},
		{
			name: "daily due today",
			task: domain.Task{Completed: true, Recurrence: domain.RecurrenceDaily, DueDate: datePtr(2026, 3, 15)},
			want: false,
		},
		{
			name: "daily no due date falls back to created_at",
			task: domain.Task{Completed: true, Recurrence: domain.RecurrenceDaily, CreatedAt: date(2026, 3, 13)},
			want: true,
		},
		{
			name: "weekly six days old",
			task: domain.Task{Completed: true, Recurrence: domain.RecurrenceWeekly, DueDate: datePtr(2026, 3, 9)},
			want: false,
		},
		{
			name: "weekly seven days old",
			task: domain.Task{Completed: true, Recurrence: domain.RecurrenceWeekly, DueDate: datePtr(2026, 3, 8)},
			want: true,
		},
		{
			name: "monthly 29 days old",
			task: domain.Task{Completed: true, Recurrence: domain.RecurrenceMonthly, DueDate: datePtr(2026, 2, 15)},
			want: false,
		},
		{
			name: "monthly 30 days old",
			task: domain.Task{Completed: true, Recurrence: domain.RecurrenceMonthly, DueDate: datePtr(2026, 2, 13)},
			want: true,
		},
		{
			name: "not completed",
			task: domain.Task{Completed: false, Recurrence: domain.RecurrenceDaily, DueDate: datePtr(2026, 3, 1)},
			want: false,
		},
		{
			name: "no recurrence",
			task: domain.Task{Completed: true, DueDate: datePtr(2026, 3, 1)},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldRespawn(&tc.task, now); got != tc.want {
				t.Errorf("ShouldRespawn = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNextDue(t *testing.T) {
	now := time.Now()

	daily := domain.Task{Recurrence: domain.RecurrenceDaily, DueDate: datePtr(2026, 3, 14)}
	if got := NextDue(&daily, now); got == nil || !got.Equal(date(2026, 3, 15)) {
		t.Errorf("daily NextDue = %v", got)
	}

	weekly := domain.Task{Recurrence: domain.RecurrenceWeekly, DueDate: datePtr(2026, 3, 8)}
	if got := NextDue(&weekly, now); got == nil || !got.Equal(date(2026, 3, 15)) {
		t.Errorf("weekly NextDue = %v", got)
	}

	monthly := domain.Task{Recurrence: domain.RecurrenceMonthly, DueDate: datePtr(2026, 2, 13)}
	if got := NextDue(&monthly, now); got == nil || !got.Equal(date(2026, 3, 15)) {
		t.Errorf("monthly NextDue = %v", got)
	}

	noDue := domain.Task{Recurrence: domain.RecurrenceDaily}
	if got := NextDue(&noDue, now); got != nil {
		t.Errorf("NextDue without due date = %v", got)
	}
}

func TestRun_RespawnsAndStripsRecurrence(t *testing.T) {
	store := task.NewInMemoryStore()
	ctx := context.Background()

	created := date(2026, 3, 10)
	store.SetNowFunc(func() time.Time { return created })

	done := &domain.Task{
		UserID:     "u1",
		Title:      "Water the plants",
		Priority:   domain.PriorityHigh,
		Tags:       []string{"home"},
		Recurrence: domain.RecurrenceDaily,
		DueDate:    datePtr(2026, 3, 10),
	}
	if err := store.Create(ctx, done); err != nil {
		t.Fatalf("creating task: %v", err)
	}
	completed := true
	if _, err := store.Update(ctx, "u1", done.ID, domain.TaskPatch{Completed: &completed}); err != nil {
		t.Fatalf("completing task: %v", err)
	}

	// One-shot completed task must not respawn.
	oneShot := &domain.Task{UserID: "u1", Title: "One off", Completed: true}
	if err := store.Create(ctx, oneShot); err != nil {
		t.Fatalf("creating one-shot: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := New(store, nil, logger)
	now := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	gen.SetNowFunc(func() time.Time { return now })
	store.SetNowFunc(func() time.Time { return now })

	gen.Run(ctx)

	tasks, err := store.List(ctx, "u1", domain.TaskFilter{})
	if err != nil {
		t.Fatalf("listing tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d: %+v", len(tasks), tasks)
	}

	var fresh, old *domain.Task
	for i := range tasks {
		switch {
		case tasks[i].ID == done.ID:
			old = &tasks[i]
		case tasks[i].Title == "Water the plants":
			fresh = &tasks[i]
		}
	}
	if fresh == nil || old == nil {
		t.Fatalf("missing respawned or original task: %+v", tasks)
	}
	if fresh.Completed {
		t.Error("respawned task must be uncompleted")
	}
	if fresh.Recurrence != domain.RecurrenceDaily {
		t.Errorf("respawned recurrence = %q", fresh.Recurrence)
	}
	if fresh.DueDate == nil || !fresh.DueDate.Equal(date(2026, 3, 11)) {
		t.Errorf("respawned due date = %v", fresh.DueDate)
	}
	if fresh.Priority != domain.PriorityHigh || len(fresh.Tags) != 1 {
		t.Errorf("respawned fields = %+v", fresh)
	}
	if old.Recurrence != domain.RecurrenceNone {
		t.Errorf("original recurrence = %q, want stripped", old.Recurrence)
	}

	// A second pass is a no-op: the original lost its recurrence and the
	// respawned task is not completed.
	gen.Run(ctx)
	tasks, _ = store.List(ctx, "u1", domain.TaskFilter{})
	if len(tasks) != 3 {
		t.Fatalf("second pass respawned again: %d tasks", len(tasks))
	}
}
