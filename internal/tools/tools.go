// Package tools defines the tool interface and registry the language agents
// call through. Tools never return Go errors for domain failures; every
// outcome is a JSON payload the model can read back.
package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jkaninda/kazi/internal/llm"
)

// ErrorPayload renders a domain failure as the tagged JSON payload tools
// hand back to the model.
func ErrorPayload(message string) string {
	b, _ := json.Marshal(map[string]string{"status": "error", "message": message})
	return string(b)
}

// SuccessPayload renders a success payload with optional extra fields.
func SuccessPayload(message string, extra map[string]any) string {
	m := map[string]any{"status": "success", "message": message}
	for k, v := range extra {
		m[k] = v
	}
	b, _ := json.Marshal(m)
	return string(b)
}

// Tool is the interface all kazi tools implement.
type Tool interface {
	// Name returns the tool's unique identifier (e.g. "add_task").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// InputSchema returns a JSON Schema object describing the tool's
	// parameters, sent to the LLM as its input_schema.
	InputSchema() map[string]any

	// Validate checks that params are well-formed before execution.
	Validate(params map[string]any) error

	// Execute runs the tool. The owning user comes from the context, never
	// from params. Domain failures are reported inside the Result, not as
	// a returned error; errors are reserved for infrastructure faults.
	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

// Result is the outcome of a tool execution. Output is the JSON payload
// handed back to the model.
type Result struct {
	Output  string `json:"output"`
	Success bool   `json:"success"`
}

// MaxOutputBytes caps tool output handed back to the model.
const MaxOutputBytes = 1 << 20 // 1 MB

// contextKey is an unexported type for context keys defined in this package.
type contextKey int

const userIDKey contextKey = iota

// ContextWithUserID returns a new context carrying the user ID.
// The runtime sets this before any tool Execute call.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the user ID from context, or "" if not set.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// TruncateOutput caps a string at maxBytes, appending a truncation notice if cut.
func TruncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const suffix = "\n... [output truncated]"
	if maxBytes <= len(suffix) {
		return s[:maxBytes]
	}
	return s[:maxBytes-len(suffix)] + suffix
}

// Registry holds available tools keyed by name.
// Thread-safe for concurrent reads; writes should only happen at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Panics on duplicate names (startup config error, not runtime).
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		panic("duplicate tool registration: " + t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all registered tools, ordered by name so the definitions
// sent to the model are stable across requests.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// ToLLMDefinitions converts all registered tools into LLM tool definitions.
func ToLLMDefinitions(reg *Registry) []llm.ToolDefinition {
	all := reg.All()
	defs := make([]llm.ToolDefinition, len(all))
	for i, t := range all {
		defs[i] = llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	return defs
}

// Dispatcher bounds concurrent tool executions so a burst of tool calls
// cannot pile unbounded storage I/O.
type Dispatcher struct {
	reg      *Registry
	sem      *semaphore.Weighted
	observer func(tool string, duration time.Duration, success bool)
}

// NewDispatcher creates a dispatcher allowing at most maxConcurrent
// executions at once. maxConcurrent <= 0 means 4.
func NewDispatcher(reg *Registry, maxConcurrent int64) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Dispatcher{reg: reg, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// WithObserver installs a hook called after every execution attempt, used
// for metrics. Nil disables observation.
func (d *Dispatcher) WithObserver(fn func(tool string, duration time.Duration, success bool)) *Dispatcher {
	d.observer = fn
	return d
}

// Execute validates and runs the named tool under the concurrency bound.
// An unknown tool or validation failure is reported as an unsuccessful
// Result so the model can recover; only infrastructure faults return an
// error.
func (d *Dispatcher) Execute(ctx context.Context, name string, params map[string]any) (*Result, error) {
	t := d.reg.Get(name)
	if t == nil {
		return &Result{Output: ErrorPayload("unknown tool: " + name)}, nil
	}
	if err := t.Validate(params); err != nil {
		return &Result{Output: ErrorPayload("invalid parameters: " + err.Error())}, nil
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	start := time.Now()
	res, err := t.Execute(ctx, params)
	if d.observer != nil {
		d.observer(name, time.Since(start), err == nil && res != nil && res.Success)
	}
	if err != nil {
		return nil, err
	}
	res.Output = TruncateOutput(res.Output, MaxOutputBytes)
	return res, nil
}
