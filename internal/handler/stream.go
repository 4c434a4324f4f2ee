package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/middleware"
	"github.com/capitalize-ai/shop-assistant/internal/model"
	"github.com/capitalize-ai/shop-assistant/internal/service"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
	"github.com/capitalize-ai/shop-assistant/pkg/metrics"
)

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	messageService *service.MessageService
	heartbeat      time.Duration
	logger         *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(msgSvc *service.MessageService, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		messageService: msgSvc,
		heartbeat:      30 * time.Second,
		logger:         log,
	}
}

// ReplayCompleteEvent represents the completion of journal replay.
type ReplayCompleteEvent struct {
	LastSequence uint64 `json:"last_sequence"`
	MessageCount int    `json:"message_count"`
}

// Stream handles GET /api/v1/stream
// Pushes the session's messages and typing indicator as they happen. With
// ?conversation_id=ID it first replays that conversation's journal, resuming
// after ?after_sequence=N.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.GetSessionID(ctx)
	conversationID := r.URL.Query().Get("conversation_id")

	if conversationID != "" {
		if err := middleware.ValidateConversationID(conversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Debug("failed to clear write deadline", zap.Error(err))
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// Subscribe before replaying so nothing falls between the two.
	events, unsubscribe := h.messageService.Subscribe(sessionID)
	defer unsubscribe()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"session_id": sessionID,
	})

	if conversationID != "" {
		h.replay(w, r, flusher, sessionID, conversationID)
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected", zap.String("session_id", sessionID))
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sendSSEEvent(w, flusher, string(ev.Type), ev); err != nil {
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func (h *StreamHandler) replay(w http.ResponseWriter, r *http.Request, flusher http.Flusher, sessionID, conversationID string) {
	ctx := r.Context()
	afterSequence := queryUint(r, "after_sequence")

	var lastSequence uint64
	var total int
	for {
		page, err := h.messageService.GetJournal(ctx, sessionID, conversationID, afterSequence, 50)
		if errors.Is(err, service.ErrJournalDisabled) {
			return
		}
		if err != nil {
			h.logger.Warn("failed to replay journal",
				zap.String("session_id", sessionID),
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
			sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
				Code:    "replay_error",
				Message: "Failed to replay messages",
			})
			return
		}

		for _, entry := range page.Entries {
			if ctx.Err() != nil {
				return
			}
			sendSSEEvent(w, flusher, "journal", entry)
			lastSequence = entry.Sequence
			total++
		}

		if !page.HasMore || page.LastSequence == afterSequence {
			break
		}
		afterSequence = page.LastSequence
	}

	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		LastSequence: lastSequence,
		MessageCount: total,
	})
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
