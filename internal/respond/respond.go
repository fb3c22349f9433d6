package respond

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
)

// Envelope is the JSON body written for every API response.
type Envelope struct {
	StatusCode int      `json:"statusCode,omitempty"`
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Data       any      `json:"data,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Success writes a successful envelope carrying data.
func Success(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	JSON(ctx, w, status, Envelope{StatusCode: status, Success: true, Message: message, Data: data})
}

// Failure writes a failed envelope. Errors is always present, possibly empty.
func Failure(ctx context.Context, w http.ResponseWriter, status int, message string, details []string) {
	if details == nil {
		details = []string{}
	}
	JSON(ctx, w, status, failureEnvelope{Success: false, Message: message, Errors: details})
}

// Error translates err into a failed envelope. Causes wrapped inside
// apperr.Error values are logged but never written to the client.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.FromContext(ctx)

	appErr, ok := apperr.As(err)
	if !ok {
		logger.Error("unhandled error", slog.Any("error", err))
		Failure(ctx, w, http.StatusInternalServerError, "Internal Server Error", nil)
		return
	}

	status := StatusFor(appErr.Kind)
	if appErr.Err != nil {
		logger.Warn("request error", slog.String("kind", appErr.Kind.String()), slog.Any("error", appErr.Err))
	}
	Failure(ctx, w, status, appErr.Message, appErr.Details)
}

type failureEnvelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

// JSON writes payload with the given status code.
func JSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status)
	}
}
