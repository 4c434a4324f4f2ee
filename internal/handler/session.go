package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/middleware"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// SessionHandler issues browser session tokens.
type SessionHandler struct {
	secret string
	ttl    time.Duration
	logger *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(secret string, ttl time.Duration, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		secret: secret,
		ttl:    ttl,
		logger: log,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.Must(uuid.NewV7()).String()

	token, expiresAt, err := middleware.IssueToken(h.secret, sessionID, h.ttl, time.Now())
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	writeJSON(w, http.StatusCreated, &model.SessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
