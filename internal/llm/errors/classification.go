package errors

import (
	"context"
	"errors"
	"strings"
)

// ClassifyLLMError maps any judge failure onto a WorkflowError carrying a
// retry recommendation. Typed errors win over sentinels, and sentinels win
// over message patterns.
func ClassifyLLMError(err error) *WorkflowError {
	if err == nil {
		return nil
	}
	if wf := classifyTyped(err); wf != nil {
		return wf
	}
	if wf := classifySentinel(err); wf != nil {
		return wf
	}
	return classifyByMessage(err)
}

func classifyTyped(err error) *WorkflowError {
	var wf *WorkflowError
	if errors.As(err, &wf) {
		return wf
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return &WorkflowError{
			Type:      provErr.Type,
			Message:   provErr.Message,
			Code:      provErr.Code,
			Retryable: provErr.IsRetryable(),
			Details: map[string]any{
				"provider":    provErr.Provider,
				"status_code": provErr.StatusCode,
			},
			Cause: err,
		}
	}

	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   rlErr.Error(),
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details: map[string]any{
				"provider":    rlErr.Provider,
				"retry_after": rlErr.RetryAfter,
			},
			Cause: err,
		}
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   valErr.Error(),
			Code:      "VALIDATION",
			Retryable: false,
			Details:   map[string]any{"field": valErr.Field},
			Cause:     err,
		}
	}
	return nil
}

func classifySentinel(err error) *WorkflowError {
	switch {
	case errors.Is(err, ErrRateLimitExceeded):
		return &WorkflowError{Type: ErrorTypeRateLimit, Message: err.Error(), Code: "RATE_LIMIT", Retryable: true, Cause: err}
	case errors.Is(err, ErrProviderUnavailable):
		return &WorkflowError{Type: ErrorTypeProvider, Message: err.Error(), Code: "PROVIDER_UNAVAILABLE", Retryable: true, Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &WorkflowError{Type: ErrorTypeTimeout, Message: err.Error(), Code: "TIMEOUT", Retryable: true, Cause: err}
	case errors.Is(err, ErrMissingAPIKey):
		return &WorkflowError{Type: ErrorTypeAuth, Message: err.Error(), Code: "MISSING_API_KEY", Retryable: false, Cause: err}
	case errors.Is(err, ErrUnknownProvider):
		return &WorkflowError{Type: ErrorTypeValidation, Message: err.Error(), Code: "UNKNOWN_PROVIDER", Retryable: false, Cause: err}
	case errors.Is(err, ErrInvalidResponse):
		return &WorkflowError{Type: ErrorTypeValidation, Message: err.Error(), Code: "INVALID_RESPONSE", Retryable: false, Cause: err}
	case errors.Is(err, ErrMaxRetriesExceeded):
		return &WorkflowError{Type: ErrorTypeProvider, Message: err.Error(), Code: "MAX_RETRIES", Retryable: false, Cause: err}
	}
	return nil
}

// messagePatterns is checked in order; the first match wins.
var messagePatterns = []struct {
	needles   []string
	typ       ErrorType
	code      string
	retryable bool
}{
	{[]string{"rate limit"}, ErrorTypeRateLimit, "RATE_LIMIT", true},
	{[]string{"timeout", "deadline"}, ErrorTypeTimeout, "TIMEOUT", true},
	{[]string{"unauthorized", "authentication"}, ErrorTypeAuth, "AUTH_FAILED", false},
	{[]string{"forbidden", "permission"}, ErrorTypePermission, "PERMISSION_DENIED", false},
	{[]string{"quota"}, ErrorTypeQuota, "QUOTA_EXCEEDED", false},
	{[]string{"network", "connection"}, ErrorTypeNetwork, "NETWORK_ERROR", true},
}

func classifyByMessage(err error) *WorkflowError {
	msg := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		for _, n := range p.needles {
			if strings.Contains(msg, n) {
				return &WorkflowError{
					Type:      p.typ,
					Message:   err.Error(),
					Code:      p.code,
					Retryable: p.retryable,
					Cause:     err,
				}
			}
		}
	}
	return &WorkflowError{
		Type:    ErrorTypeUnknown,
		Message: err.Error(),
		Code:    "UNKNOWN",
		Cause:   err,
	}
}
