package taskops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/kazi/internal/domain"
	"github.com/jkaninda/kazi/internal/task"
	"github.com/jkaninda/kazi/internal/tools"
)

// AddTool creates a new task. An unrecognized priority is silently coerced
// to Medium here; update_task rejects it instead. The asymmetry is
// long-standing observable behavior, kept on purpose.
type AddTool struct{ base }

func (t *AddTool) Name() string { return "add_task" }
func (t *AddTool) Description() string {
	return "Add a new task to the user's todo list. Use this when the user wants to " +
		"create, add, or remember something to do."
}

func (t *AddTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Short task title (at most 200 characters)",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Optional longer description",
			},
			"priority":   prioritySchema(),
			"tags":       tagsSchema(),
			"due_date":   dueDateSchema(),
			"recurrence": map[string]any{"type": "string", "description": "Repeat schedule: daily, weekly, or monthly"},
		},
		"required": []string{"title"},
	}
}

func (t *AddTool) Validate(params map[string]any) error {
	title, err := requireString(params, "title")
	if err != nil {
		return err
	}
	return task.ValidateTitle(title)
}

func (t *AddTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, err
	}

	title, _ := requireString(params, "title")
	description, _ := params["description"].(string)

	priority := domain.PriorityMedium
	if raw, ok := params["priority"].(string); ok && raw != "" {
		if p, ok := domain.ParsePriority(raw); ok {
			priority = p
		}
		// Unrecognized values fall through to Medium.
	}

	recurrence := domain.RecurrenceNone
	if raw, ok := params["recurrence"].(string); ok {
		r, ok := domain.ParseRecurrence(raw)
		if !ok {
			return &tools.Result{Output: tools.ErrorPayload("recurrence must be daily, weekly, or monthly")}, nil
		}
		recurrence = r
	}

	newTask := &domain.Task{
		UserID:      userID,
		Title:       title,
		Description: description,
		Priority:    priority,
		Tags:        stringSlice(params["tags"]),
		Recurrence:  recurrence,
	}
	if raw, ok := params["due_date"].(string); ok && raw != "" {
		d, err := parseDueDate(raw)
		if err != nil {
			return &tools.Result{Output: tools.ErrorPayload(err.Error())}, nil
		}
		newTask.DueDate = &d
	}

	if err := t.store.Create(ctx, newTask); err != nil {
		if err == task.ErrInvalidTitle {
			return &tools.Result{Output: tools.ErrorPayload(err.Error())}, nil
		}
		return nil, fmt.Errorf("creating task: %w", err)
	}

	t.logger.InfoContext(ctx, "task added",
		slog.String("user_id", userID), slog.Int64("task_id", newTask.ID))

	msg := fmt.Sprintf("Task '%s' added successfully", newTask.Title)
	return &tools.Result{
		Output:  tools.SuccessPayload(msg, map[string]any{"task": taskPayload(newTask)}),
		Success: true,
	}, nil
}

// CompleteTool marks a task completed. Completing an already-completed task
// is a success, reported as such.
type CompleteTool struct{ base }

func (t *CompleteTool) Name() string { return "complete_task" }
func (t *CompleteTool) Description() string {
	return "Mark a task as completed. Use this when the user says they finished or did something."
}

func (t *CompleteTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"task_id": taskIDSchema()},
		"required":   []string{"task_id"},
	}
}

func (t *CompleteTool) Validate(params map[string]any) error {
	_, err := taskID(params)
	return err
}

func (t *CompleteTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, err
	}
	id, _ := taskID(params)

	existing, err := t.store.GetByID(ctx, userID, id)
	if err != nil {
		if err == task.ErrNotFound {
			return &tools.Result{Output: tools.ErrorPayload(notFoundMsg)}, nil
		}
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if existing.Completed {
		msg := fmt.Sprintf("Task '%s' is already completed", existing.Title)
		return &tools.Result{
			Output:  tools.SuccessPayload(msg, map[string]any{"task": taskPayload(existing)}),
			Success: true,
		}, nil
	}

	done := true
	updated, err := t.store.Update(ctx, userID, id, domain.TaskPatch{Completed: &done})
	if err != nil {
		if err == task.ErrNotFound {
			return &tools.Result{Output: tools.ErrorPayload(notFoundMsg)}, nil
		}
		return nil, fmt.Errorf("completing task: %w", err)
	}

	msg := fmt.Sprintf("Task '%s' marked as completed", updated.Title)
	return &tools.Result{
		Output:  tools.SuccessPayload(msg, map[string]any{"task": taskPayload(updated)}),
		Success: true,
	}, nil
}

// UncompleteTool marks a task as not completed. Like CompleteTool, it is
// idempotent: reopening an already-open task is a success, reported as such.
type UncompleteTool struct{ base }

func (t *UncompleteTool) Name() string { return "uncomplete_task" }
func (t *UncompleteTool) Description() string {
	return "Mark a completed task as not completed, putting it back on the active list."
}

func (t *UncompleteTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"task_id": taskIDSchema()},
		"required":   []string{"task_id"},
	}
}

func (t *UncompleteTool) Validate(params map[string]any) error {
	_, err := taskID(params)
	return err
}

func (t *UncompleteTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, err
	}
	id, _ := taskID(params)

	existing, err := t.store.GetByID(ctx, userID, id)
	if err != nil {
		if err == task.ErrNotFound {
			return &tools.Result{Output: tools.ErrorPayload(notFoundMsg)}, nil
		}
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if !existing.Completed {
		msg := fmt.Sprintf("Task '%s' is already open", existing.Title)
		return &tools.Result{
			Output:  tools.SuccessPayload(msg, map[string]any{"task": taskPayload(existing)}),
			Success: true,
		}, nil
	}

	notDone := false
	updated, err := t.store.Update(ctx, userID, id, domain.TaskPatch{Completed: &notDone})
	if err != nil {
		if err == task.ErrNotFound {
			return &tools.Result{Output: tools.ErrorPayload(notFoundMsg)}, nil
		}
		return nil, fmt.Errorf("uncompleting task: %w", err)
	}

	msg := fmt.Sprintf("Task '%s' marked as not completed", updated.Title)
	return &tools.Result{
		Output:  tools.SuccessPayload(msg, map[string]any{"task": taskPayload(updated)}),
		Success: true,
	}, nil
}

// DeleteTool removes a task permanently.
type DeleteTool struct{ base }

func (t *DeleteTool) Name() string { return "delete_task" }
func (t *DeleteTool) Description() string {
	return "Delete a task permanently. Use this when the user wants to remove a task entirely."
}

func (t *DeleteTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"task_id": taskIDSchema()},
		"required":   []string{"task_id"},
	}
}

func (t *DeleteTool) Validate(params map[string]any) error {
	_, err := taskID(params)
	return err
}

func (t *DeleteTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, err
	}
	id, _ := taskID(params)

	existing, err := t.store.GetByID(ctx, userID, id)
	if err != nil {
		if err == task.ErrNotFound {
			return &tools.Result{Output: tools.ErrorPayload(notFoundMsg)}, nil
		}
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if err := t.store.Delete(ctx, userID, id); err != nil {
		if err == task.ErrNotFound {
			return &tools.Result{Output: tools.ErrorPayload(notFoundMsg)}, nil
		}
		return nil, fmt.Errorf("deleting task: %w", err)
	}

	t.logger.InfoContext(ctx, "task deleted",
		slog.String("user_id", userID), slog.Int64("task_id", id))

	msg := fmt.Sprintf("Task '%s' deleted successfully", existing.Title)
	return &tools.Result{Output: tools.SuccessPayload(msg, nil), Success: true}, nil
}

// UpdateTool applies a partial update. Unlike add_task, an unrecognized
// priority here is an error.
type UpdateTool struct{ base }

func (t *UpdateTool) Name() string { return "update_task" }
func (t *UpdateTool) Description() string {
	return "Update fields of an existing task: title, description, priority, tags, " +
		"due date, or recurrence. Only the provided fields change."
}

func (t *UpdateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": taskIDSchema(),
			"title": map[string]any{
				"type":        "string",
				"description": "New task title (at most 200 characters)",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "New description",
			},
			"priority":   prioritySchema(),
			"tags":       tagsSchema(),
			"due_date":   dueDateSchema(),
			"recurrence": map[string]any{"type": "string", "description": "Repeat schedule: daily, weekly, or monthly; empty to clear"},
		},
		"required": []string{"task_id"},
	}
}

func (t *UpdateTool) Validate(params map[string]any) error {
	_, err := taskID(params)
	return err
}

func (t *UpdateTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, err
	}
	id, _ := taskID(params)

	var patch domain.TaskPatch
	if raw, ok := params["title"].(string); ok {
		if err := task.ValidateTitle(raw); err != nil {
			return &tools.Result{Output: tools.ErrorPayload(err.Error())}, nil
		}
		patch.Title = &raw
	}
	if raw, ok := params["description"].(string); ok {
		patch.Description = &raw
	}
	if raw, ok := params["priority"].(string); ok {
		p, valid := domain.ParsePriority(raw)
		if !valid {
			return &tools.Result{Output: tools.ErrorPayload("priority must be High, Medium, or Low")}, nil
		}
		patch.Priority = &p
	}
	if v, ok := params["tags"]; ok {
		tags := stringSlice(v)
		patch.Tags = &tags
	}
	if raw, ok := params["due_date"].(string); ok {
		if raw == "" {
			patch.ClearDue = true
		} else {
			d, err := parseDueDate(raw)
			if err != nil {
				return &tools.Result{Output: tools.ErrorPayload(err.Error())}, nil
			}
			patch.DueDate = &d
		}
	}
	if raw, ok := params["recurrence"].(string); ok {
		r, valid := domain.ParseRecurrence(raw)
		if !valid {
			return &tools.Result{Output: tools.ErrorPayload("recurrence must be daily, weekly, or monthly")}, nil
		}
		patch.Recurrence = &r
	}

	if patch == (domain.TaskPatch{}) {
		existing, err := t.store.GetByID(ctx, userID, id)
		if err != nil {
			if err == task.ErrNotFound {
				return &tools.Result{Output: tools.ErrorPayload(notFoundMsg)}, nil
			}
			return nil, fmt.Errorf("loading task: %w", err)
		}
		return &tools.Result{
			Output:  tools.SuccessPayload("No changes made", map[string]any{"task": taskPayload(existing)}),
			Success: true,
		}, nil
	}

	updated, err := t.store.Update(ctx, userID, id, patch)
	if err != nil {
		switch err {
		case task.ErrNotFound:
			return &tools.Result{Output: tools.ErrorPayload(notFoundMsg)}, nil
		case task.ErrInvalidTitle:
			return &tools.Result{Output: tools.ErrorPayload(err.Error())}, nil
		}
		return nil, fmt.Errorf("updating task: %w", err)
	}

	msg := fmt.Sprintf("Task '%s' updated successfully", updated.Title)
	return &tools.Result{
		Output:  tools.SuccessPayload(msg, map[string]any{"task": taskPayload(updated)}),
		Success: true,
	}, nil
}
