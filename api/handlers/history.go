package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/echo-chat/backend/internal/model"
)

// maxHistoryLimit caps the limit query parameter.
const maxHistoryLimit = 100

// MessageStore is the read side of the message repository.
type MessageStore interface {
	Recent(ctx context.Context, limit int) ([]*model.StoredMessage, error)
	Count(ctx context.Context) (int, error)
}

// HistoryHandler serves stored chat history over HTTP.
type HistoryHandler struct {
	store        MessageStore
	defaultLimit int
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(store MessageStore, defaultLimit int) *HistoryHandler {
	return &HistoryHandler{store: store, defaultLimit: defaultLimit}
}

// MessageResponse represents a stored message in API responses.
type MessageResponse struct {
	ID        string `json:"id"`
	ClientID  string `json:"clientId"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Messages []*MessageResponse `json:"messages"`
	Total    int                `json:"total"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// List handles GET /api/history. The optional limit query parameter
// defaults to the configured history limit.
func (h *HistoryHandler) List(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and "+strconv.Itoa(maxHistoryLimit))
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	messages, err := h.store.Recent(ctx, limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load history: "+err.Error())
		return
	}
	total, err := h.store.Count(ctx)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to count messages: "+err.Error())
		return
	}

	resp := HistoryResponse{
		Messages: make([]*MessageResponse, 0, len(messages)),
		Total:    total,
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers the history routes on a Gin router group.
func (h *HistoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/history", h.List)
}

func toMessageResponse(m *model.StoredMessage) *MessageResponse {
	return &MessageResponse{
		ID:        m.ID,
		ClientID:  m.ClientID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
