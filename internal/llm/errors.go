package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// ErrorType categorizes provider errors for fallback log lines.
type ErrorType string

const (
	ErrorTypeUnknown    ErrorType = "unknown"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeOverloaded ErrorType = "overloaded"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeBilling    ErrorType = "billing"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNotFound   ErrorType = "not_found" // unknown model or endpoint
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeFormat     ErrorType = "format" // malformed response body
)

// ClassifyError determines the error type, preferring the HTTP status when known.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		if t := classifyStatus(pe.StatusCode); t != ErrorTypeUnknown {
			return t
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetwork
	}

	return ClassifyMessage(err.Error())
}

func classifyStatus(code int) ErrorType {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorTypeAuth
	case code == http.StatusPaymentRequired:
		return ErrorTypeBilling
	case code == http.StatusNotFound:
		return ErrorTypeNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case code == 529 || code == http.StatusServiceUnavailable || code == http.StatusBadGateway:
		return ErrorTypeOverloaded
	default:
		return ErrorTypeUnknown
	}
}

// ClassifyMessage matches well-known phrases from provider error messages.
// Checked in order of specificity.
func ClassifyMessage(msg string) ErrorType {
	lower := strings.ToLower(msg)
	switch {
	case lower == "":
		return ErrorTypeUnknown
	case containsAny(lower, "insufficient_quota", "billing", "credit balance", "payment required"):
		return ErrorTypeBilling
	case containsAny(lower, "rate limit", "rate_limit", "too many requests", "429", "quota"):
		return ErrorTypeRateLimit
	case containsAny(lower, "overloaded", "service unavailable", "503", "529"):
		return ErrorTypeOverloaded
	case containsAny(lower, "invalid api key", "invalid_api_key", "unauthorized", "authentication", "401", "403"):
		return ErrorTypeAuth
	case containsAny(lower, "timeout", "timed out", "deadline exceeded"):
		return ErrorTypeTimeout
	case containsAny(lower, "model not found", "does not exist", "not_found", "404"):
		return ErrorTypeNotFound
	case containsAny(lower, "connection refused", "no such host", "connection reset", "network is unreachable"):
		return ErrorTypeNetwork
	case containsAny(lower, "decode response", "missing", "no content", "empty response"):
		return ErrorTypeFormat
	default:
		return ErrorTypeUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
