package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/capitalize-ai/shop-assistant/internal/commerce"
	"github.com/capitalize-ai/shop-assistant/internal/service"
	"github.com/capitalize-ai/shop-assistant/internal/session"
	"github.com/capitalize-ai/shop-assistant/pkg/logger"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps a service error onto a status and logs the ones
// that are ours to fix.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, action string) {
	var apiErr *commerce.APIError
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrLoginFailed):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrNotSignedIn):
		writeError(w, http.StatusUnauthorized, "not signed in")
	case errors.Is(err, service.ErrJournalDisabled):
		writeError(w, http.StatusNotImplemented, "journal disabled")
	case errors.Is(err, service.ErrBackendUnavailable):
		writeError(w, http.StatusServiceUnavailable, "commerce backend not configured")
	case errors.As(err, &apiErr):
		log.Warn(action+" rejected by backend", zap.Error(err))
		writeError(w, http.StatusBadGateway, apiErr.Message)
	default:
		log.Error(action+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, action+" failed")
	}
}

// decodeJSON decodes the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// queryInt parses a bounded integer query parameter.
func queryInt(r *http.Request, name string, def, max int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= max {
			return parsed
		}
	}
	return def
}

// queryUint parses an unsigned query parameter.
func queryUint(r *http.Request, name string) uint64 {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
