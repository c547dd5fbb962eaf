package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dealerreach/backend/pkg/conversations"
)

// ConversationHandler handles conversation ownership requests
type ConversationHandler struct {
	conversationService *conversations.Service
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationService *conversations.Service) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
	}
}

// GetConversation godoc
// @Summary Get a conversation
// @Description Returns a conversation with its full message thread
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.Conversation
// @Failure 404 {object} map[string]string "Conversation not found"
// @Router /conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c echo.Context) error {
	conv, err := h.conversationService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

// EscalateConversation godoc
// @Summary Escalate a conversation to a human agent
// @Description Hands the thread from the AI to a human and notifies the sales channel
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "Conversation is not AI-owned"
// @Router /conversations/{id}/escalate [post]
func (h *ConversationHandler) EscalateConversation(c echo.Context) error {
	if err := h.conversationService.Escalate(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "escalated"})
}

// CloseConversation godoc
// @Summary Close a conversation
// @Tags Conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Conversation not found"
// @Router /conversations/{id}/close [post]
func (h *ConversationHandler) CloseConversation(c echo.Context) error {
	if err := h.conversationService.Close(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "closed"})
}
