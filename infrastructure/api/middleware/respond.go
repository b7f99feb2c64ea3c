package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/connector"
)

// ErrorResponse is the JSON error envelope returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError maps service errors to HTTP status codes and writes the error
// envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status := http.StatusInternalServerError
	code := "internal"

	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Code()
		code = http.StatusText(status)
	case errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
		code = "validation"
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, connector.ErrAlreadyRunning):
		status = http.StatusConflict
		code = "conflict"
	case errors.Is(err, service.ErrAllProvidersFailed):
		status = http.StatusUnprocessableEntity
		code = "providers_exhausted"
	case errors.Is(err, service.ErrLLMNotConfigured):
		status = http.StatusServiceUnavailable
		code = "llm_not_configured"
	}

	if logger != nil && status >= http.StatusInternalServerError {
		logger.Error("request error",
			"status", status,
			"error", err.Error(),
			"path", r.URL.Path,
		)
	}

	WriteJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
