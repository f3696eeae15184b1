package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jkaninda/kazi/internal/chat"
	"github.com/jkaninda/kazi/internal/domain"
)

// maxMessageChars caps user-authored chat messages, counted in characters.
const maxMessageChars = 1000

// ChatRequest is the JSON body for POST /v1/chat and /v1/chat/stream.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"` // Empty = new conversation.
}

// ChatResponse is the JSON response for POST /v1/chat.
type ChatResponse struct {
	ConversationID string                `json:"conversation_id"`
	MessageID      string                `json:"message_id,omitempty"`
	Success        bool                  `json:"success"`
	Response       string                `json:"response"`
	AgentName      string                `json:"agent_name"`
	AgentIcon      string                `json:"agent_icon"`
	ToolCalls      []chat.ToolCallRecord `json:"tool_calls,omitempty"`
}

// streamFrame is one SSE frame. Every frame is written as a single
// "data: <JSON>\n\n" block; the event type lives inside the JSON.
type streamFrame struct {
	Type           string                `json:"type"`
	ConversationID string                `json:"conversation_id,omitempty"`
	MessageID      string                `json:"message_id,omitempty"`
	Content        string                `json:"content,omitempty"`
	AgentName      string                `json:"agent_name,omitempty"`
	AgentIcon      string                `json:"agent_icon,omitempty"`
	Tool           string                `json:"tool,omitempty"`
	Args           map[string]any        `json:"args,omitempty"`
	ToolCalls      []chat.ToolCallRecord `json:"tool_calls,omitempty"`
}

// chatSetup is the shared preamble of both chat endpoints: authentication,
// rate limiting, body parsing, conversation resolution, and persisting the
// user message. By the time it returns ok, the user message is durable;
// a disconnect mid-turn can lose the reply but never the question.
func (g *Gateway) chatSetup(w http.ResponseWriter, r *http.Request) (userID string, req ChatRequest, conv *domain.Conversation, created bool, ok bool) {
	userID, authed := g.resolveAPIKey(r.Header.Get("Authorization"))
	if !authed {
		writeJSONError(w, http.StatusUnauthorized, "missing or invalid API key")
		return "", req, nil, false, false
	}

	if g.limiter != nil {
		err := g.limiter.Allow(userID)
		g.writeRateHeaders(w, userID)
		if err != nil {
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return "", req, nil, false, false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, g.maxRequestSize())
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return "", req, nil, false, false
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return "", req, nil, false, false
	}
	if utf8.RuneCountInString(req.Message) > maxMessageChars {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("message exceeds %d characters", maxMessageChars))
		return "", req, nil, false, false
	}

	if req.ConversationID != "" {
		id, err := uuid.Parse(req.ConversationID)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "conversation_id must be a UUID")
			return "", req, nil, false, false
		}
		conv, err = g.convs.GetConversation(r.Context(), userID, id)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, chat.ErrConversationNotFound.Error())
			return "", req, nil, false, false
		}
	} else {
		var err error
		conv, err = g.convs.CreateConversation(r.Context(), userID, chat.GenerateTitle(req.Message))
		if err != nil {
			if errors.Is(err, chat.ErrConversationLimit) {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return "", req, nil, false, false
			}
			g.logger.Error("conversation create failed", slog.String("user_id", userID), slog.String("error", err.Error()))
			writeJSONError(w, http.StatusInternalServerError, "could not create conversation")
			return "", req, nil, false, false
		}
		created = true
	}

	userMsg := domain.Message{
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        req.Message,
	}
	if err := g.convs.AppendMessage(r.Context(), userID, &userMsg); err != nil {
		g.logger.Error("persisting user message failed",
			slog.String("conversation_id", conv.ID.String()),
			slog.String("error", err.Error()),
		)
		writeJSONError(w, http.StatusInternalServerError, "could not store message")
		return "", req, nil, false, false
	}

	return userID, req, conv, created, true
}

// handleChat answers one message in batch and persists the exchange.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	userID, req, conv, _, ok := g.chatSetup(w, r)
	if !ok {
		return
	}

	correlationID := newCorrelationID()
	g.logger.Info("chat message",
		slog.String("user_id", userID),
		slog.String("correlation_id", correlationID),
		slog.String("conversation_id", conv.ID.String()),
	)

	result, err := g.runtime.ProcessMessage(r.Context(), userID, conv.ID, req.Message)
	if err != nil {
		g.logger.Error("chat processing failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		writeJSONError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	assistantID := g.persistReply(r, userID, conv.ID, result.Content, result.AgentName, result.AgentIcon)

	writeJSON(w, http.StatusOK, ChatResponse{
		ConversationID: conv.ID.String(),
		MessageID:      assistantID,
		Success:        result.Success,
		Response:       result.Content,
		AgentName:      result.AgentName,
		AgentIcon:      result.AgentIcon,
		ToolCalls:      result.ToolCalls,
	})
}

// handleChatStream answers one message as server-sent events. The stream
// opens with conversation_created when a new conversation was started and
// ends with exactly one done or error frame.
func (g *Gateway) handleChatStream(w http.ResponseWriter, r *http.Request) {
	userID, req, conv, created, ok := g.chatSetup(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if created {
		writeFrame(w, flusher, streamFrame{Type: "conversation_created", ConversationID: conv.ID.String()})
	}

	for ev := range g.runtime.ProcessMessageStream(r.Context(), userID, conv.ID, req.Message) {
		switch ev.Type {
		case "token":
			writeFrame(w, flusher, streamFrame{Type: "token", Content: ev.Content})
		case "agent_change":
			writeFrame(w, flusher, streamFrame{
				Type:      "agent_change",
				AgentName: ev.AgentName,
				AgentIcon: ev.AgentIcon,
			})
		case "tool_call":
			writeFrame(w, flusher, streamFrame{Type: "tool_call", Tool: ev.Tool, Args: ev.Args})
		case "done":
			assistantID := g.persistReply(r, userID, conv.ID, ev.Content, ev.AgentName, ev.AgentIcon)
			writeFrame(w, flusher, streamFrame{
				Type:           "done",
				ConversationID: conv.ID.String(),
				MessageID:      assistantID,
				Content:        ev.Content,
				AgentName:      ev.AgentName,
				AgentIcon:      ev.AgentIcon,
				ToolCalls:      ev.ToolCalls,
			})
			return
		case "error":
			g.persistReply(r, userID, conv.ID, ev.Content, ev.AgentName, ev.AgentIcon)
			writeFrame(w, flusher, streamFrame{
				Type:      "error",
				Content:   ev.Content,
				AgentName: ev.AgentName,
				AgentIcon: ev.AgentIcon,
			})
			return
		}
	}
}

// persistReply stores the assistant reply once the turn has completed. The
// user message was already persisted by chatSetup. Returns the assistant
// message ID.
func (g *Gateway) persistReply(r *http.Request, userID string, convID uuid.UUID, reply, agentName, agentIcon string) string {
	assistantMsg := domain.Message{
		ConversationID: convID,
		Role:           domain.RoleAssistant,
		Content:        reply,
		AgentName:      agentName,
		AgentIcon:      agentIcon,
	}
	if err := g.convs.AppendMessage(r.Context(), userID, &assistantMsg); err != nil {
		g.logger.Error("persisting assistant message failed",
			slog.String("conversation_id", convID.String()),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return assistantMsg.ID.String()
}

// writeRateHeaders sets the standard rate-limit response headers.
func (g *Gateway) writeRateHeaders(w http.ResponseWriter, userID string) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(g.limiter.Limit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(g.limiter.Remaining(userID)))
	reset := int(math.Ceil(g.limiter.ResetAfter(userID).Seconds()))
	if reset < 0 {
		reset = 0
	}
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, frame streamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorBody{Error: msg})
}
