package tools

import (
	"context"
	"strings"
	"testing"
)

type fakeTool struct {
	name        string
	validateErr error
	result      *Result
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string         { return "fake" }
func (f *fakeTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (f *fakeTool) Validate(map[string]any) error {
	return f.validateErr
}
func (f *fakeTool) Execute(context.Context, map[string]any) (*Result, error) {
	return f.result, nil
}

func TestRegistryPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "a"})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	reg.Register(&fakeTool{name: "a"})
}

func TestUserIDContextRoundTrip(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "u1")
	if got := UserIDFromContext(ctx); got != "u1" {
		t.Errorf("UserIDFromContext = %q", got)
	}
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context should yield empty user, got %q", got)
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := TruncateOutput(long, 50)
	if len(got) > 50 {
		t.Errorf("truncated output is %d bytes", len(got))
	}
	if !strings.Contains(got, "[output truncated]") {
		t.Error("missing truncation notice")
	}
	if TruncateOutput("short", 50) != "short" {
		t.Error("short output should pass through unchanged")
	}
}

func TestDispatcherUnknownToolAndValidation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "ok", result: &Result{Output: SuccessPayload("done", nil), Success: true}})
	d := NewDispatcher(reg, 2)

	res, err := d.Execute(context.Background(), "nope", nil)
	if err != nil {
		t.Fatalf("unknown tool should not error: %v", err)
	}
	if res.Success || !strings.Contains(res.Output, "unknown tool") {
		t.Errorf("unknown tool result = %+v", res)
	}

	res, err = d.Execute(context.Background(), "ok", nil)
	if err != nil || !res.Success {
		t.Errorf("dispatch of valid tool failed: %v %+v", err, res)
	}
}

func TestToLLMDefinitions(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "delete_task"})
	reg.Register(&fakeTool{name: "add_task"})
	reg.Register(&fakeTool{name: "complete_task"})
	defs := ToLLMDefinitions(reg)
	if len(defs) != 3 {
		t.Fatalf("got %d definitions", len(defs))
	}
	for _, d := range defs {
		if d.InputSchema["type"] != "object" {
			t.Errorf("schema not carried: %v", d)
		}
	}
	// Ordered by name regardless of registration order, so the tool list
	// sent to the model is stable across requests.
	want := []string{"add_task", "complete_task", "delete_task"}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("defs[%d] = %s, want %s", i, defs[i].Name, name)
		}
	}
}
