package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cantogame/internal/service"
	"cantogame/internal/validation"
)

// errorResponse is the JSON body of every error reply
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Field     string `json:"field,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		slog.Error(logMsg, "status", status, "error", err)
	}

	respondWithJSON(w, status, errorResponse{Error: userMsg})
}

// statusForKind maps a service error kind to an HTTP status
func statusForKind(k service.Kind) int {
	switch k {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidState, service.KindConflict:
		return http.StatusConflict
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondWithServiceError replies to an error returned by a service. Internal
// errors are logged and hidden from the client.
func respondWithServiceError(w http.ResponseWriter, logMsg string, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		respondWithError(w, status, ErrInternalServerError, logMsg, err)
		return
	}

	body := errorResponse{Error: err.Error(), Kind: kind.String()}

	var verr validation.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	var inProgress *service.InProgressError
	if errors.As(err, &inProgress) {
		body.SessionID = inProgress.SessionID
	}
	if kind == service.KindConflict {
		// the joined driver error stays in the log
		body.Error = service.ErrConcurrencyConflict.Error()
		w.Header().Set("Retry-After", "1")
	}

	slog.Debug(logMsg, "status", status, "kind", kind, "error", err)
	respondWithJSON(w, status, body)
}
