package taskops

import (
	"context"
	"fmt"
	"strings"

	"github.com/jkaninda/kazi/internal/domain"
	"github.com/jkaninda/kazi/internal/task"
	"github.com/jkaninda/kazi/internal/tools"
)

// Result caps shared by the listing tools.
const (
	defaultListLimit   = 50
	defaultSearchLimit = 20
	maxResultLimit     = 100
)

// resultLimit resolves the optional limit parameter, capped at
// maxResultLimit. Absent or non-positive values fall back to def.
func resultLimit(params map[string]any, def int) int {
	limit := def
	if raw, ok := params["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}
	if limit > maxResultLimit {
		limit = maxResultLimit
	}
	return limit
}

func limitSchema(def int) map[string]any {
	return map[string]any{
		"type":        "integer",
		"description": fmt.Sprintf("Maximum number of results (default %d, max %d)", def, maxResultLimit),
	}
}

// ListTool returns the user's tasks, optionally narrowed by completion
// state, priority, or tags.
type ListTool struct{ base }

func (t *ListTool) Name() string { return "list_tasks" }
func (t *ListTool) Description() string {
	return "List the user's tasks. Optional filters: completed (true/false), " +
		"priority (High/Medium/Low), and tags (tasks must carry every listed tag)."
}

func (t *ListTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"completed": map[string]any{
				"type":        "boolean",
				"description": "Only completed (true) or only pending (false) tasks",
			},
			"priority": prioritySchema(),
			"tags":     tagsSchema(),
			"limit":    limitSchema(defaultListLimit),
		},
	}
}

func (t *ListTool) Validate(_ map[string]any) error { return nil }

func (t *ListTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, err
	}

	filter := domain.TaskFilter{Limit: resultLimit(params, defaultListLimit)}
	if v, ok := params["completed"].(bool); ok {
		filter.Completed = &v
	}
	if raw, ok := params["priority"].(string); ok && raw != "" {
		p, valid := domain.ParsePriority(raw)
		if !valid {
			return &tools.Result{Output: tools.ErrorPayload("priority must be High, Medium, or Low")}, nil
		}
		filter.Priority = p
	}
	filter.Tags = stringSlice(params["tags"])

	tasks, err := t.store.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	msg := fmt.Sprintf("Found %d task(s)", len(tasks))
	return &tools.Result{
		Output:  tools.SuccessPayload(msg, map[string]any{"tasks": taskListPayload(tasks), "count": len(tasks)}),
		Success: true,
	}, nil
}

// SearchTool does a case-insensitive substring search over titles and
// descriptions.
type SearchTool struct{ base }

func (t *SearchTool) Name() string { return "search_tasks" }
func (t *SearchTool) Description() string {
	return "Search the user's tasks by keyword. Matches against title and description, " +
		"case-insensitively."
}

func (t *SearchTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Text to search for",
			},
			"limit": limitSchema(defaultSearchLimit),
		},
		"required": []string{"query"},
	}
}

func (t *SearchTool) Validate(params map[string]any) error {
	query, err := requireString(params, "query")
	if err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("parameter query must be a non-empty string")
	}
	return nil
}

func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, err
	}
	query, _ := requireString(params, "query")
	needle := strings.ToLower(query)
	limit := resultLimit(params, defaultSearchLimit)

	all, err := t.store.List(ctx, userID, domain.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	var matched []domain.Task
	for _, tk := range all {
		if len(matched) == limit {
			break
		}
		if strings.Contains(strings.ToLower(tk.Title), needle) ||
			strings.Contains(strings.ToLower(tk.Description), needle) {
			matched = append(matched, tk)
		}
	}

	msg := fmt.Sprintf("Found %d task(s) matching '%s'", len(matched), query)
	return &tools.Result{
		Output:  tools.SuccessPayload(msg, map[string]any{"tasks": taskListPayload(matched), "count": len(matched)}),
		Success: true,
	}, nil
}

// AnalyticsTool summarizes the user's tasks.
type AnalyticsTool struct{ base }

func (t *AnalyticsTool) Name() string { return "get_task_analytics" }
func (t *AnalyticsTool) Description() string {
	return "Get a summary of the user's tasks: totals, completion rate, counts by " +
		"priority, overdue tasks, and tasks due today."
}

func (t *AnalyticsTool) InputSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *AnalyticsTool) Validate(_ map[string]any) error { return nil }

func (t *AnalyticsTool) Execute(ctx context.Context, _ map[string]any) (*tools.Result, error) {
	userID, err := t.userID(ctx)
	if err != nil {
		return nil, err
	}

	all, err := t.store.List(ctx, userID, domain.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	a := task.ComputeAnalytics(all, t.now())

	return &tools.Result{
		Output: tools.SuccessPayload("Task analytics computed", map[string]any{"analytics": map[string]any{
			"total":           a.Total,
			"completed":       a.Completed,
			"pending":         a.Pending,
			"completion_rate": a.CompletionRate,
			"by_priority": map[string]int{
				"High":   a.ByPriority[domain.PriorityHigh],
				"Medium": a.ByPriority[domain.PriorityMedium],
				"Low":    a.ByPriority[domain.PriorityLow],
			},
			"overdue":   a.Overdue,
			"due_today": a.DueToday,
		}}),
		Success: true,
	}, nil
}
