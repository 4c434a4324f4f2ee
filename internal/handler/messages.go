package handler

import (
	"net/http"

	"github.com/capitalize-ai/shop-assistant/internal/middleware"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/service"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messageService *service.MessageService
	logger         *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(msgSvc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: msgSvc,
		logger:         log,
	}
}

// Send handles POST /api/v1/chat/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateMessageText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.messageService.Send(ctx, middleware.GetSessionID(ctx), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "send message")
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// Journal handles GET /api/v1/conversations/:id/journal
// Supports ?after_sequence=N&limit=M for paging.
func (h *MessageHandler) Journal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	afterSequence := queryUint(r, "after_sequence")
	limit := queryInt(r, "limit", 50, 100)

	resp, err := h.messageService.GetJournal(ctx, middleware.GetSessionID(ctx), conversationID, afterSequence, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "read journal")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
