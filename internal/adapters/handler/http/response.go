package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientOptions),
		errors.Is(err, domain.ErrMissingCode),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrInvalidDurationFormat),
		errors.Is(err, domain.ErrInvalidField):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPollNotFound),
		errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrDraftNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionAlreadyActive),
		errors.Is(err, domain.ErrCodeInUse),
		errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrCannotEditClosed),
		errors.Is(err, domain.ErrPollClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
