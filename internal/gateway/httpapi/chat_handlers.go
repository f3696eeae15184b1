package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jkaninda/kazi/internal/chat"
	"github.com/jkaninda/kazi/internal/domain"
	"github.com/jkaninda/okapi"
)

// ConversationRequest is the JSON body for creating or renaming a conversation.
type ConversationRequest struct {
	Title string `json:"title"`
}

// ConversationResponse is the JSON shape of a conversation.
type ConversationResponse = domain.Conversation

// MessageResponse is the JSON shape of a stored message.
type MessageResponse = domain.Message

// ConversationDetail is a conversation with its full message history.
type ConversationDetail struct {
	domain.Conversation
	Messages []domain.Message `json:"messages"`
}

func (g *Gateway) handleConversationCreate(c *okapi.Context) error {
	userID := c.GetString("userID")

	var req ConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	conv, err := g.convs.CreateConversation(c.Context(), userID, req.Title)
	if err != nil {
		if errors.Is(err, chat.ErrConversationLimit) {
			return c.AbortBadRequest(err.Error())
		}
		g.logger.Error("conversation create failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return c.AbortInternalServerError("could not create conversation")
	}
	return c.JSON(http.StatusCreated, conv)
}

func (g *Gateway) handleConversationList(c *okapi.Context) error {
	userID := c.GetString("userID")

	convs, err := g.convs.ListConversations(c.Context(), userID)
	if err != nil {
		g.logger.Error("conversation list failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return c.AbortInternalServerError("could not list conversations")
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return c.OK(convs)
}

func (g *Gateway) handleConversationGet(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("conversation id must be a UUID")
	}

	conv, err := g.convs.GetConversation(c.Context(), userID, id)
	if err != nil {
		return conversationError(c, err)
	}
	msgs, err := g.convs.ListMessages(c.Context(), userID, id)
	if err != nil {
		return conversationError(c, err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return c.OK(ConversationDetail{Conversation: *conv, Messages: msgs})
}

func (g *Gateway) handleConversationRename(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("conversation id must be a UUID")
	}

	var req ConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.Title == "" {
		return c.AbortBadRequest("title is required")
	}

	if err := g.convs.UpdateTitle(c.Context(), userID, id, req.Title); err != nil {
		return conversationError(c, err)
	}
	conv, err := g.convs.GetConversation(c.Context(), userID, id)
	if err != nil {
		return conversationError(c, err)
	}
	return c.OK(conv)
}

func (g *Gateway) handleConversationDelete(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("conversation id must be a UUID")
	}

	if err := g.convs.DeleteConversation(c.Context(), userID, id); err != nil {
		return conversationError(c, err)
	}
	return c.JSON(http.StatusNoContent, nil)
}

func (g *Gateway) handleConversationMessages(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("conversation id must be a UUID")
	}

	msgs, err := g.convs.ListMessages(c.Context(), userID, id)
	if err != nil {
		return conversationError(c, err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return c.OK(msgs)
}

// handleConversationGenerateTitle re-derives the title from the first user
// message in the conversation.
func (g *Gateway) handleConversationGenerateTitle(c *okapi.Context) error {
	userID := c.GetString("userID")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("conversation id must be a UUID")
	}

	msgs, err := g.convs.ListMessages(c.Context(), userID, id)
	if err != nil {
		return conversationError(c, err)
	}

	title := ""
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			title = chat.GenerateTitle(m.Content)
			break
		}
	}
	if title == "" {
		return c.AbortBadRequest("conversation has no user messages to derive a title from")
	}

	if err := g.convs.UpdateTitle(c.Context(), userID, id, title); err != nil {
		return conversationError(c, err)
	}
	conv, err := g.convs.GetConversation(c.Context(), userID, id)
	if err != nil {
		return conversationError(c, err)
	}
	return c.OK(conv)
}

func conversationError(c *okapi.Context, err error) error {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		return c.JSON(http.StatusNotFound, okapi.M{"error": err.Error()})
	case errors.Is(err, chat.ErrInvalidRole):
		return c.AbortBadRequest(err.Error())
	default:
		return c.AbortInternalServerError("conversation operation failed")
	}
}
