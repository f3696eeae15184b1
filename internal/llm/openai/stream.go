package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/jkaninda/kazi/internal/llm"
)

// StreamMessage sends the conversation with stream=true and forwards events
// to the channel. Text deltas are emitted as they arrive; tool calls are
// assembled across chunks and emitted once their arguments are complete.
func (c *Client) StreamMessage(ctx context.Context, req *llm.Request, events chan<- llm.StreamEvent) error {
	defer close(events)

	apiReq := c.buildRequest(req, true)

	httpResp, err := c.post(ctx, apiReq)
	if err != nil {
		llm.SendEvent(ctx, events, llm.StreamEvent{Type: "error", Error: err})
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		apiErr := &llm.APIError{StatusCode: httpResp.StatusCode, Body: string(body)}
		llm.SendEvent(ctx, events, llm.StreamEvent{Type: "error", Error: apiErr})
		return apiErr
	}

	calls := map[int]*pendingToolCall{}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk apiStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // Skip malformed chunks.
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			if !llm.SendEvent(ctx, events, llm.StreamEvent{Type: "text", Content: choice.Delta.Content}) {
				return ctx.Err()
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			call, ok := calls[tc.Index]
			if !ok {
				call = &pendingToolCall{}
				calls[tc.Index] = call
			}
			if tc.ID != "" {
				call.id = tc.ID
			}
			if tc.Function.Name != "" {
				call.name = tc.Function.Name
			}
			call.args.WriteString(tc.Function.Arguments)
		}
	}
	if err := scanner.Err(); err != nil {
		wrapped := fmt.Errorf("reading stream: %w", err)
		llm.SendEvent(ctx, events, llm.StreamEvent{Type: "error", Error: wrapped})
		return wrapped
	}

	for _, call := range sortedCalls(calls) {
		var input map[string]any
		_ = json.Unmarshal([]byte(call.args.String()), &input)
		block := llm.ToolUseBlock(call.id, call.name, input)
		if !llm.SendEvent(ctx, events, llm.StreamEvent{Type: "tool_use_start", ToolUse: &block}) {
			return ctx.Err()
		}
	}

	llm.SendEvent(ctx, events, llm.StreamEvent{Type: "done"})
	return nil
}

// pendingToolCall accumulates tool_call fragments spread across chunks.
type pendingToolCall struct {
	id   string
	name string
	args strings.Builder
}

func sortedCalls(calls map[int]*pendingToolCall) []*pendingToolCall {
	idx := make([]int, 0, len(calls))
	for i := range calls {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]*pendingToolCall, 0, len(calls))
	for _, i := range idx {
		out = append(out, calls[i])
	}
	return out
}

// --- streaming wire types ---

type apiStreamChunk struct {
	Choices []apiStreamChoice `json:"choices"`
}

type apiStreamChoice struct {
	Delta        apiStreamDelta `json:"delta"`
	FinishReason string         `json:"finish_reason"`
}

type apiStreamDelta struct {
	Content   string              `json:"content"`
	ToolCalls []apiStreamToolCall `json:"tool_calls"`
}

type apiStreamToolCall struct {
	Index    int                 `json:"index"`
	ID       string              `json:"id,omitempty"`
	Function apiToolCallFunction `json:"function"`
}
