// Package taskops implements the task management tools the language agents
// call: add, list, complete, uncomplete, delete, update, search, and
// analytics. Every tool is scoped to the user carried in the execution
// context and reports domain failures inside its JSON payload so the model
// can recover conversationally.
package taskops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jkaninda/kazi/internal/domain"
	"github.com/jkaninda/kazi/internal/task"
	"github.com/jkaninda/kazi/internal/tools"
)

// notFoundMsg deliberately does not distinguish a missing task from one
// owned by another user.
const notFoundMsg = "Task not found or access denied"

// Tools builds the full task tool set backed by the given store.
func Tools(store task.Store, logger *slog.Logger) []tools.Tool {
	base := base{store: store, logger: logger, now: time.Now}
	return []tools.Tool{
		&AddTool{base},
		&ListTool{base},
		&CompleteTool{base},
		&UncompleteTool{base},
		&DeleteTool{base},
		&UpdateTool{base},
		&SearchTool{base},
		&AnalyticsTool{base},
	}
}

// RegisterAll registers the full task tool set on reg.
func RegisterAll(reg *tools.Registry, store task.Store, logger *slog.Logger) {
	for _, t := range Tools(store, logger) {
		reg.Register(t)
	}
}

type base struct {
	store  task.Store
	logger *slog.Logger
	now    func() time.Time
}

func (b *base) userID(ctx context.Context) (string, error) {
	userID := tools.UserIDFromContext(ctx)
	if userID == "" {
		return "", fmt.Errorf("user identity not available in execution context")
	}
	return userID, nil
}

// taskPayload is the wire shape of a task inside tool output.
func taskPayload(t *domain.Task) map[string]any {
	m := map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"completed":   t.Completed,
		"priority":    string(t.Priority),
		"tags":        t.Tags,
	}
	if t.DueDate != nil {
		m["due_date"] = t.DueDate.UTC().Format(time.RFC3339)
	}
	if t.Recurrence != domain.RecurrenceNone {
		m["recurrence"] = string(t.Recurrence)
	}
	return m
}

func taskListPayload(ts []domain.Task) []map[string]any {
	out := make([]map[string]any, len(ts))
	for i := range ts {
		out[i] = taskPayload(&ts[i])
	}
	return out
}

func requireString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %s must be a non-empty string", key)
	}
	return s, nil
}

// taskID accepts both JSON numbers and numeric strings; models produce both.
func taskID(params map[string]any) (int64, error) {
	v, ok := params["task_id"]
	if !ok {
		return 0, fmt.Errorf("missing required parameter: task_id")
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		var id int64
		if _, err := fmt.Sscanf(n, "%d", &id); err != nil {
			return 0, fmt.Errorf("task_id must be a number")
		}
		return id, nil
	default:
		return 0, fmt.Errorf("task_id must be a number")
	}
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// parseDueDate accepts RFC 3339 or a bare YYYY-MM-DD date.
func parseDueDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("due_date must be an ISO date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

func dueDateSchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Due date as YYYY-MM-DD or an RFC 3339 timestamp",
	}
}

func prioritySchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Task priority: High, Medium, or Low",
	}
}

func tagsSchema() map[string]any {
	return map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Labels attached to the task",
	}
}

func taskIDSchema() map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": "Numeric ID of the task",
	}
}
