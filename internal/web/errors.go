package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheet2sql/internal/core"
	"github.com/JonMunkholm/sheet2sql/internal/logging"
	"github.com/JonMunkholm/sheet2sql/internal/schema"
	"github.com/JonMunkholm/sheet2sql/internal/workbook"
)

// ErrorResponse is the JSON body of every error. Code is stable and can be
// quoted to support; Message and Action are for people.
type ErrorResponse struct {
	Error     string `json:"error"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// respondError logs err with request context and writes its user-facing
// mapping. A zero status is derived from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)
	requestID := middleware.GetReqID(r.Context())

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSONStatus(w, status, ErrorResponse{
		Error:     msg.Message,
		Action:    msg.Action,
		Code:      msg.Code,
		RequestID: requestID,
	})
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, schema.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyTransforms):
		return http.StatusServiceUnavailable
	case errors.Is(err, schema.ErrInvalidTemplate):
		return http.StatusConflict
	case errors.Is(err, schema.ErrNoTemplateMatch),
		errors.Is(err, workbook.ErrUnsupportedFormat),
		errors.Is(err, workbook.ErrEmptyFile):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v. Encoding errors are only logged since the
// header is already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
