// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/shop-assistant/internal/middleware"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/service"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)

	var req model.CreateConversationRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Create(ctx, sessionID, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.List(ctx, middleware.GetSessionID(ctx))
	if err != nil {
		writeServiceError(w, h.logger, err, "list conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Clear handles DELETE /api/v1/conversations
func (h *ConversationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.service.Clear(ctx, middleware.GetSessionID(ctx)); err != nil {
		writeServiceError(w, h.logger, err, "clear conversations")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Get(ctx, middleware.GetSessionID(ctx), conversationID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Update handles PUT /api/v1/conversations/:id
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	var req model.UpdateConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Update(ctx, middleware.GetSessionID(ctx), conversationID, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "rename conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Select handles POST /api/v1/conversations/:id/select
func (h *ConversationHandler) Select(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	conv, err := h.service.Select(ctx, middleware.GetSessionID(ctx), conversationID)
	if err != nil {
		writeServiceError(w, h.logger, err, "select conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Delete handles DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, ok := conversationParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, middleware.GetSessionID(ctx), conversationID); err != nil {
		writeServiceError(w, h.logger, err, "delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func conversationParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return conversationID, true
}
