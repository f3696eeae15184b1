package chat

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/kazi/internal/llm"
)

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamEventOrder(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse("Hi there!")}}
	rt, _ := testRuntime(t, provider)

	events := collect(rt.ProcessMessageStream(context.Background(), "u1", uuid.Nil, "list my tasks"))
	if len(events) < 3 {
		t.Fatalf("events = %+v", events)
	}

	if events[0].Type != "agent_change" || events[0].AgentName != PersonaOrchestrator.Name {
		t.Errorf("first event = %+v, want orchestrator agent_change", events[0])
	}
	if events[1].Type != "agent_change" || events[1].AgentName != PersonaEnglish.Name {
		t.Errorf("second event = %+v, want handoff agent_change", events[1])
	}

	last := events[len(events)-1]
	if last.Type != "done" {
		t.Fatalf("terminal event = %+v", last)
	}
	if last.Content != "Hi there!" {
		t.Errorf("done content = %q", last.Content)
	}
	if last.AgentName != PersonaEnglish.Name {
		t.Errorf("done attribution = %s", last.AgentName)
	}

	// Token concatenation must equal the done content.
	var text string
	terminals := 0
	for _, ev := range events {
		if ev.Type == "token" {
			text += ev.Content
		}
		if ev.Type == "done" || ev.Type == "error" {
			terminals++
		}
	}
	if text != last.Content {
		t.Errorf("tokens %q != done content %q", text, last.Content)
	}
	if terminals != 1 {
		t.Errorf("terminal events = %d, want exactly 1", terminals)
	}
}

func TestStreamSmallTalkSingleAgentChange(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{textResponse("Hello! I'm Aren 🤖")}}
	rt, _ := testRuntime(t, provider)

	events := collect(rt.ProcessMessageStream(context.Background(), "u1", uuid.Nil, "hello"))

	changes := 0
	for _, ev := range events {
		if ev.Type == "agent_change" {
			changes++
		}
	}
	if changes != 1 {
		t.Errorf("agent_change events = %d, want 1 (no handoff for small talk)", changes)
	}
}

func TestStreamToolCalls(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		toolResponse("call_1", "add_task", map[string]any{"title": "buy milk"}),
		textResponse("Done! Added 'buy milk'."),
	}}
	rt, _ := testRuntime(t, provider)

	events := collect(rt.ProcessMessageStream(context.Background(), "u1", uuid.Nil, "add buy milk"))

	var toolEvents []Event
	var done *Event
	for i, ev := range events {
		switch ev.Type {
		case "tool_call":
			toolEvents = append(toolEvents, ev)
		case "done":
			done = &events[i]
		}
	}
	if len(toolEvents) != 1 || toolEvents[0].Tool != "add_task" {
		t.Errorf("tool_call events = %+v", toolEvents)
	}
	if got, _ := toolEvents[0].Args["title"].(string); got != "buy milk" {
		t.Errorf("tool_call args = %+v, want title=buy milk", toolEvents[0].Args)
	}
	if done == nil {
		t.Fatal("no done event")
	}
	if len(done.ToolCalls) != 1 || done.ToolCalls[0].Name != "add_task" || !done.ToolCalls[0].Success {
		t.Errorf("done tool calls = %+v", done.ToolCalls)
	}
}

func TestStreamErrorTerminal(t *testing.T) {
	provider := &scriptedProvider{errs: []error{context.DeadlineExceeded}}
	rt, _ := testRuntime(t, provider)

	events := collect(rt.ProcessMessageStream(context.Background(), "u1", uuid.Nil, "add a task"))
	last := events[len(events)-1]
	if last.Type != "error" {
		t.Fatalf("terminal event = %+v", last)
	}
	if last.Content != msgTimeout {
		t.Errorf("error content = %q", last.Content)
	}
	if last.AgentName != PersonaOrchestrator.Name {
		t.Errorf("errors are attributed to the orchestrator, got %s", last.AgentName)
	}
	for _, ev := range events {
		if ev.Type == "done" {
			t.Error("error streams must not also emit done")
		}
	}
}
