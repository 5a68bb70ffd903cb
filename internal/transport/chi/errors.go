package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/viola622/Flowise/internal/domain"
	logpkg "github.com/viola622/Flowise/internal/logger"
)

// ErrorCode is the machine-readable error identifier in every error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeNotFound               ErrorCode = "not_found"
	CodeLoaderNotFound         ErrorCode = "loader_not_found"
	CodeChunkNotFound          ErrorCode = "chunk_not_found"
	CodeAlreadyExists          ErrorCode = "already_exists"
	CodeUnknownComponent       ErrorCode = "unknown_component"
	CodeMethodNotAllowed       ErrorCode = "method_not_allowed"
	CodeRateLimited            ErrorCode = "rate_limited"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeSearchIndexError       ErrorCode = "search_index_error"
	CodeNotImplemented         ErrorCode = "not_implemented"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	// Order matters: upstream failures may also wrap ErrNotFound (missing index),
	// and specific not-found sentinels must win over the generic one.
	return []errorHandler{
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrSearchIndexError, http.StatusBadGateway, CodeSearchIndexError),
		sentinelHandler(domain.ErrLoaderNotFound, http.StatusNotFound, CodeLoaderNotFound),
		sentinelHandler(domain.ErrChunkNotFound, http.StatusNotFound, CodeChunkNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrUnknownComponent, http.StatusBadRequest, CodeUnknownComponent),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Validation failures keep their detail since it only echoes the caller's input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidSchema) || errors.Is(err, domain.ErrUnknownComponent) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrEmbeddingProviderError,
		domain.ErrSearchIndexError,
		domain.ErrLoaderNotFound,
		domain.ErrChunkNotFound,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrRateLimited,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
