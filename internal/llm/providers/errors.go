package providers

import (
	"net/http"
	"strconv"
	"strings"

	llmerrors "github.com/ahrav/agentjudge/internal/llm/errors"
)

// classifyErrorType derives an ErrorType from the provider's error code,
// falling back to the HTTP status.
func classifyErrorType(statusCode int, errorCode string) llmerrors.ErrorType {
	lower := strings.ToLower(errorCode)
	switch {
	case strings.Contains(lower, "rate") || strings.Contains(lower, "limit"):
		return llmerrors.ErrorTypeRateLimit
	case strings.Contains(lower, "overloaded"):
		return llmerrors.ErrorTypeProvider
	case strings.Contains(lower, "timeout"):
		return llmerrors.ErrorTypeTimeout
	case strings.Contains(lower, "auth"):
		return llmerrors.ErrorTypeAuth
	case strings.Contains(lower, "permission") || strings.Contains(lower, "forbidden"):
		return llmerrors.ErrorTypePermission
	case strings.Contains(lower, "quota"):
		return llmerrors.ErrorTypeQuota
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return llmerrors.ErrorTypeRateLimit
	case http.StatusUnauthorized:
		return llmerrors.ErrorTypeAuth
	case http.StatusForbidden:
		return llmerrors.ErrorTypePermission
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return llmerrors.ErrorTypeTimeout
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return llmerrors.ErrorTypeValidation
	}
	if statusCode >= http.StatusInternalServerError {
		return llmerrors.ErrorTypeProvider
	}
	return llmerrors.ErrorTypeUnknown
}

// retryAfterSeconds reads a numeric Retry-After header.
func retryAfterSeconds(h http.Header) int {
	if h == nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
