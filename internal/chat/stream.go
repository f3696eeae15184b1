package chat

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jkaninda/kazi/internal/llm"
	"github.com/jkaninda/kazi/internal/tools"
)

// Event is one element of the streamed reply protocol. Exactly one
// terminal event (done or error) ends every stream.
type Event struct {
	Type      string           `json:"type"` // "agent_change", "token", "tool_call", "done", "error"
	Content   string           `json:"content,omitempty"`
	AgentName string           `json:"agent_name,omitempty"`
	AgentIcon string           `json:"agent_icon,omitempty"`
	Tool      string           `json:"tool,omitempty"`
	Args      map[string]any   `json:"args,omitempty"` // Parsed tool arguments, best effort.
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
}

// ProcessMessageStream answers one user message as a stream of events. The
// channel always starts with an agent_change for the orchestrator, emits a
// second agent_change when the message is handed off to a language agent,
// and closes after a single done or error event. done carries the full
// accumulated content so callers can persist the reply without
// re-assembling tokens.
func (r *Runtime) ProcessMessageStream(ctx context.Context, userID string, convID uuid.UUID, text string) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		r.streamTurn(ctx, out, userID, convID, text)
	}()
	return out
}

func (r *Runtime) streamTurn(ctx context.Context, out chan<- Event, userID string, convID uuid.UUID, text string) {
	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Type: "agent_change", AgentName: r.root.persona.Name, AgentIcon: r.root.persona.Icon}) {
		return
	}

	agent := r.root.Route(text)
	if agent != r.root {
		if !emit(Event{Type: "agent_change", AgentName: agent.persona.Name, AgentIcon: agent.persona.Icon}) {
			return
		}
	}

	history, err := r.loadHistory(ctx, userID, convID)
	if err != nil {
		emit(Event{
			Type:      "error",
			Content:   FailureMessage(err),
			AgentName: r.root.persona.Name,
			AgentIcon: r.root.persona.Icon,
		})
		return
	}

	messages := append(history, llm.Message{Role: llm.RoleUser, Content: text})
	ctx = tools.ContextWithUserID(ctx, userID)

	streaming, ok := r.provider.(llm.StreamingProvider)
	if !ok {
		streaming = &llm.NonStreamingAdapter{Provider: r.provider}
	}

	var accumulated string
	var toolCalls []ToolCallRecord

	for iter := 0; iter < r.maxIterations; iter++ {
		events := make(chan llm.StreamEvent, 16)
		go func() {
			// StreamMessage closes the channel; its error also arrives as
			// an error event.
			_ = streaming.StreamMessage(ctx, &llm.Request{
				SystemPrompt: agent.systemPrompt,
				Messages:     messages,
				Tools:        r.toolDefs(agent),
			}, events)
		}()

		var iterText string
		var toolUses []llm.ContentBlock
		var streamErr error

		for ev := range events {
			switch ev.Type {
			case "text":
				iterText += ev.Content
				accumulated += ev.Content
				if !emit(Event{Type: "token", Content: ev.Content}) {
					return
				}
			case "tool_use_start":
				if ev.ToolUse != nil {
					toolUses = append(toolUses, *ev.ToolUse)
				}
			case "error":
				streamErr = ev.Error
			}
		}

		if streamErr != nil {
			r.logger.ErrorContext(ctx, "llm stream failed",
				slog.String("agent", agent.persona.Name),
				slog.String("error", streamErr.Error()),
			)
			emit(Event{
				Type:      "error",
				Content:   FailureMessage(streamErr),
				AgentName: r.root.persona.Name,
				AgentIcon: r.root.persona.Icon,
			})
			return
		}

		if len(toolUses) == 0 {
			emit(Event{
				Type:      "done",
				Content:   doneContent(accumulated, iterText),
				AgentName: agent.persona.Name,
				AgentIcon: agent.persona.Icon,
				ToolCalls: toolCalls,
			})
			return
		}

		var blocks []llm.ContentBlock
		if iterText != "" {
			blocks = append(blocks, llm.TextBlock(iterText))
		}
		blocks = append(blocks, toolUses...)
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, ContentBlocks: blocks})

		var resultBlocks []llm.ContentBlock
		for _, block := range toolUses {
			if !emit(Event{Type: "tool_call", Tool: block.Name, Args: block.Input}) {
				return
			}
			if agent.dispatcher == nil {
				out := tools.ErrorPayload("no tools available to this agent")
				resultBlocks = append(resultBlocks, llm.ToolResultBlock(block.ID, out, true))
				toolCalls = append(toolCalls, ToolCallRecord{Name: block.Name, Input: block.Input, Output: out})
				continue
			}
			res, err := agent.dispatcher.Execute(ctx, block.Name, block.Input)
			if err != nil {
				r.logger.ErrorContext(ctx, "tool execution failed", slog.String("error", err.Error()))
				emit(Event{
					Type:      "error",
					Content:   FailureMessage(err),
					AgentName: r.root.persona.Name,
					AgentIcon: r.root.persona.Icon,
				})
				return
			}
			resultBlocks = append(resultBlocks, llm.ToolResultBlock(block.ID, res.Output, !res.Success))
			toolCalls = append(toolCalls, ToolCallRecord{
				Name:    block.Name,
				Input:   block.Input,
				Output:  res.Output,
				Success: res.Success,
			})
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, ContentBlocks: resultBlocks})
	}

	r.logger.WarnContext(ctx, "max tool-use iterations reached",
		slog.Int("max_iterations", r.maxIterations))
	emit(Event{
		Type:      "done",
		Content:   doneContent(accumulated, ""),
		AgentName: agent.persona.Name,
		AgentIcon: agent.persona.Icon,
		ToolCalls: toolCalls,
	})
}

// doneContent prefers the full accumulated stream text; the final
// iteration's text alone is the fallback when nothing streamed.
func doneContent(accumulated, lastIter string) string {
	if accumulated != "" {
		return accumulated
	}
	return lastIter
}
