package chat

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jkaninda/kazi/internal/domain"
	"github.com/jkaninda/kazi/internal/llm"
	"github.com/jkaninda/kazi/internal/tools"
)

// DefaultMaxIterations bounds the tool-use loop per message.
const DefaultMaxIterations = 10

// Runtime drives a conversation turn: it routes the message through the
// agent hierarchy, runs the tool-use loop, and maps failures onto the
// fixed user-safe replies. It reads history but never writes it; the
// transport persists the user message before invoking the runtime and the
// assistant reply after the turn completes. LoadRecent excludes that
// just-persisted user message, so history never double-counts the turn.
type Runtime struct {
	provider llm.Provider
	root     *Agent
	store    ConversationStore
	logger   *slog.Logger

	maxIterations int
	window        int
}

// NewRuntime creates a conversation runtime rooted at the given agent.
func NewRuntime(provider llm.Provider, root *Agent, store ConversationStore, logger *slog.Logger) *Runtime {
	return &Runtime{
		provider:      provider,
		root:          root,
		store:         store,
		logger:        logger,
		maxIterations: DefaultMaxIterations,
		window:        DefaultContextWindow,
	}
}

// WithMaxIterations sets the tool-use loop bound.
func (r *Runtime) WithMaxIterations(n int) *Runtime {
	if n > 0 {
		r.maxIterations = n
	}
	return r
}

// WithContextWindow sets the history window, clamped to the policy bounds.
func (r *Runtime) WithContextWindow(n int) *Runtime {
	r.window = ClampWindow(n)
	return r
}

// ToolCallRecord is one tool invocation made while answering a message.
type ToolCallRecord struct {
	Name    string         `json:"name"`
	Input   map[string]any `json:"input,omitempty"`
	Output  string         `json:"output"`
	Success bool           `json:"success"`
}

// Result is the outcome of a processed message. Success false means the
// Content is one of the fixed failure replies, attributed to the
// orchestrator persona.
type Result struct {
	Success   bool             `json:"success"`
	Content   string           `json:"content"`
	AgentName string           `json:"agent_name"`
	AgentIcon string           `json:"agent_icon"`
	ToolCalls []ToolCallRecord `json:"tool_calls"`
}

// ProcessMessage answers one user message in batch. The returned error is
// always nil for model-level failures; those surface as an unsuccessful
// Result so callers can persist and display the reply uniformly.
func (r *Runtime) ProcessMessage(ctx context.Context, userID string, convID uuid.UUID, text string) (*Result, error) {
	agent := r.root.Route(text)
	history, err := r.loadHistory(ctx, userID, convID)
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "processing message",
		slog.String("user_id", userID),
		slog.String("conversation_id", convID.String()),
		slog.String("agent", agent.persona.Name),
	)

	messages := append(history, llm.Message{Role: llm.RoleUser, Content: text})
	ctx = tools.ContextWithUserID(ctx, userID)

	var toolCalls []ToolCallRecord
	var lastContent string

	for iter := 0; iter < r.maxIterations; iter++ {
		resp, err := r.provider.SendMessage(ctx, &llm.Request{
			SystemPrompt: agent.systemPrompt,
			Messages:     messages,
			Tools:        r.toolDefs(agent),
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "llm request failed",
				slog.String("agent", agent.persona.Name),
				slog.String("error", err.Error()),
			)
			return r.failure(err, toolCalls), nil
		}
		lastContent = resp.Content

		messages = append(messages, llm.Message{
			Role:          llm.RoleAssistant,
			ContentBlocks: resp.ContentBlocks,
		})

		if !resp.HasToolUse() {
			return &Result{
				Success:   true,
				Content:   resp.Content,
				AgentName: agent.persona.Name,
				AgentIcon: agent.persona.Icon,
				ToolCalls: toolCalls,
			}, nil
		}

		resultBlocks, records, err := r.executeToolCalls(ctx, agent, resp.ToolUseBlocks())
		toolCalls = append(toolCalls, records...)
		if err != nil {
			r.logger.ErrorContext(ctx, "tool execution failed", slog.String("error", err.Error()))
			return r.failure(err, toolCalls), nil
		}
		messages = append(messages, llm.Message{
			Role:          llm.RoleUser,
			ContentBlocks: resultBlocks,
		})
	}

	r.logger.WarnContext(ctx, "max tool-use iterations reached",
		slog.Int("max_iterations", r.maxIterations))
	if lastContent == "" {
		lastContent = "Maximum tool use iterations reached. Please refine your request."
	}
	return &Result{
		Success:   true,
		Content:   lastContent,
		AgentName: agent.persona.Name,
		AgentIcon: agent.persona.Icon,
		ToolCalls: toolCalls,
	}, nil
}

// failure builds the orchestrator-attributed reply for an infrastructure
// error.
func (r *Runtime) failure(err error, toolCalls []ToolCallRecord) *Result {
	return &Result{
		Success:   false,
		Content:   FailureMessage(err),
		AgentName: r.root.persona.Name,
		AgentIcon: r.root.persona.Icon,
		ToolCalls: toolCalls,
	}
}

func (r *Runtime) toolDefs(agent *Agent) []llm.ToolDefinition {
	if agent.dispatcher == nil {
		return nil
	}
	return tools.ToLLMDefinitions(agent.dispatcher.Registry())
}

// executeToolCalls runs every tool_use block and returns the matching
// tool_result blocks plus records for the caller.
func (r *Runtime) executeToolCalls(ctx context.Context, agent *Agent, blocks []llm.ContentBlock) ([]llm.ContentBlock, []ToolCallRecord, error) {
	var resultBlocks []llm.ContentBlock
	var records []ToolCallRecord

	for _, block := range blocks {
		if agent.dispatcher == nil {
			out := tools.ErrorPayload("no tools available to this agent")
			resultBlocks = append(resultBlocks, llm.ToolResultBlock(block.ID, out, true))
			records = append(records, ToolCallRecord{Name: block.Name, Input: block.Input, Output: out})
			continue
		}

		res, err := agent.dispatcher.Execute(ctx, block.Name, block.Input)
		if err != nil {
			return nil, records, err
		}

		r.logger.InfoContext(ctx, "tool executed",
			slog.String("tool", block.Name),
			slog.Bool("success", res.Success),
		)
		resultBlocks = append(resultBlocks, llm.ToolResultBlock(block.ID, res.Output, !res.Success))
		records = append(records, ToolCallRecord{
			Name:    block.Name,
			Input:   block.Input,
			Output:  res.Output,
			Success: res.Success,
		})
	}
	return resultBlocks, records, nil
}

// loadHistory converts the recent persisted turns into model messages.
// System messages are skipped; tool traffic is not persisted, so history
// is plain text turns.
func (r *Runtime) loadHistory(ctx context.Context, userID string, convID uuid.UUID) ([]llm.Message, error) {
	if r.store == nil || convID == uuid.Nil {
		return nil, nil
	}
	msgs, err := r.store.LoadRecent(ctx, userID, convID, r.window)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleUser:
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case domain.RoleAssistant:
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return out, nil
}
