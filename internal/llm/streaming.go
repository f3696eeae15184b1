package llm

import "context"

// StreamEvent is a single event in a streaming LLM response.
type StreamEvent struct {
	Type    string        // "text", "tool_use_start", "done", "error"
	Content string        // Text delta for "text" events.
	ToolUse *ContentBlock // Tool use block for "tool_use_start" events.
	Error   error         // Error for "error" events.
}

// StreamingProvider extends Provider with streaming support. Providers
// without native streaming can be wrapped with NonStreamingAdapter.
type StreamingProvider interface {
	Provider
	// StreamMessage sends a request and streams events to the channel.
	// The channel is closed when the response is complete, an error occurs,
	// or ctx is canceled; sends never outlive ctx, so a consumer that stops
	// reading after canceling cannot strand the producer.
	StreamMessage(ctx context.Context, req *Request, events chan<- StreamEvent) error
}

// SendEvent delivers ev unless ctx is done first. Stream producers use it
// for every send so they unblock when the consumer gives up.
func SendEvent(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// NonStreamingAdapter implements StreamingProvider on top of a plain
// Provider by buffering the full response and replaying it as events.
type NonStreamingAdapter struct {
	Provider
}

// StreamMessage calls SendMessage and sends the result as buffered events.
func (a *NonStreamingAdapter) StreamMessage(ctx context.Context, req *Request, events chan<- StreamEvent) error {
	defer close(events)

	resp, err := a.SendMessage(ctx, req)
	if err != nil {
		SendEvent(ctx, events, StreamEvent{Type: "error", Error: err})
		return err
	}

	if resp.Content != "" {
		if !SendEvent(ctx, events, StreamEvent{Type: "text", Content: resp.Content}) {
			return ctx.Err()
		}
	}
	for _, block := range resp.ToolUseBlocks() {
		b := block
		if !SendEvent(ctx, events, StreamEvent{Type: "tool_use_start", ToolUse: &b}) {
			return ctx.Err()
		}
	}

	SendEvent(ctx, events, StreamEvent{Type: "done"})
	return nil
}
