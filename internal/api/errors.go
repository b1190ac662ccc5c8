// Package api exposes the personalization services over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/highlights/internal/apperr"
	"github.com/onnwee/highlights/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeForbidden indicates the caller may not act on the resource.
	ErrCodeForbidden = "forbidden"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeEmbeddingFailed indicates the embedding provider failed.
	ErrCodeEmbeddingFailed = "embedding_failed"

	// ErrCodeStoreFailed indicates a backing store call failed.
	ErrCodeStoreFailed = "store_failed"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeMethodNotAllowed indicates the route does not accept the method.
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// The error code is attached to ctx so the logging middleware records it:
//
//	api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "Post not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// kindStatus maps an apperr kind to its status code and error code.
func kindStatus(kind error) (int, string) {
	switch kind {
	case apperr.ErrUnauthorized:
		return http.StatusUnauthorized, ErrCodeAuthFailed
	case apperr.ErrForbidden:
		return http.StatusForbidden, ErrCodeForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case apperr.ErrInvalidInput:
		return http.StatusBadRequest, ErrCodeValidation
	case apperr.ErrEmbeddingFailed:
		return http.StatusBadGateway, ErrCodeEmbeddingFailed
	case apperr.ErrStoreFailed:
		return http.StatusInternalServerError, ErrCodeStoreFailed
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// clientMessages are the messages shown for failures whose cause must not leak.
var clientMessages = map[string]string{
	ErrCodeAuthFailed:      "Authentication required",
	ErrCodeForbidden:       "Not allowed to act on this resource",
	ErrCodeNotFound:        "Resource not found",
	ErrCodeEmbeddingFailed: "Embedding provider unavailable",
	ErrCodeStoreFailed:     "Storage unavailable",
	ErrCodeInternal:        "Internal server error",
}

// WriteAppError classifies a service error and writes the matching response.
// Server-side failures are logged with the full cause; the client only sees
// the error code and a fixed message.
func WriteAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := kindStatus(apperr.KindOf(err))

	message := clientMessages[code]
	if code == ErrCodeValidation {
		message = apperr.Message(err)
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("error_code", code),
			slog.String("error", err.Error()),
		)
	} else if errors.Is(err, apperr.ErrForbidden) {
		logger.InfoContext(r.Context(), "request forbidden",
			slog.String("user_id", middleware.GetUserID(r.Context())),
		)
	}

	WriteError(w, r.Context(), status, code, message)
}

// StatusCodeMapping returns the recommended HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeEmbeddingFailed:
		return http.StatusBadGateway
	case ErrCodeStoreFailed, ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
