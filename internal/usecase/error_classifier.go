package usecase

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"portfolio-assistant/internal/domain"
)

// FailureKind is the user-facing category of a failed provider call.
type FailureKind int

const (
	FailureGeneric FailureKind = iota
	FailureAuth
	FailureRateLimit
	FailureUnavailable
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuth:
		return "auth"
	case FailureRateLimit:
		return "rate_limit"
	case FailureUnavailable:
		return "unavailable"
	default:
		return "generic"
	}
}

// Replies shown for each failure kind.
const (
	ReplyGenericFailure = "Sorry, I encountered an error processing your request."
	ReplyAuthFailure    = "⚠️ API authentication failed. Please refresh the page."
	ReplyRateLimited    = "⏱️ Too many requests. Please wait a moment and try again."
	ReplyUnavailable    = "🔧 Service temporarily unavailable. Please try again in a few moments."
)

// Reply returns the guidance text for k.
func (k FailureKind) Reply() string {
	switch k {
	case FailureAuth:
		return ReplyAuthFailure
	case FailureRateLimit:
		return ReplyRateLimited
	case FailureUnavailable:
		return ReplyUnavailable
	default:
		return ReplyGenericFailure
	}
}

// ClassifiedError holds the result of error classification.
type ClassifiedError struct {
	Original   error
	Kind       FailureKind
	StatusCode int  // extracted HTTP status, or 0 if unknown
	Timeout    bool // the caller's deadline expired
}

// ErrorClassifier maps provider errors onto failure kinds.
type ErrorClassifier struct{}

// NewErrorClassifier creates a new classifier.
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// statusPattern matches the status code in "returned NNN" and "API error NNN"
// messages.
var statusPattern = regexp.MustCompile(`(?:returned|API error) (\d{3})\b`)

// Classify inspects an error from a provider call. Wrapped domain sentinels
// win; otherwise a status code in the message is used, and finally the bare
// substrings "401", "429" and "503", checked in that order.
func (c *ErrorClassifier) Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	out := ClassifiedError{
		Original: err,
		Timeout:  errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrTimeout),
	}

	errStr := err.Error()
	if m := statusPattern.FindStringSubmatch(errStr); len(m) == 2 {
		out.StatusCode, _ = strconv.Atoi(m[1])
	}

	switch {
	case errors.Is(err, domain.ErrAuthInvalid):
		out.Kind = FailureAuth
	case errors.Is(err, domain.ErrRateLimit):
		out.Kind = FailureRateLimit
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrCircuitOpen):
		out.Kind = FailureUnavailable
	case out.StatusCode != 0:
		out.Kind = kindForStatus(out.StatusCode)
	default:
		out.Kind = classifyByString(errStr)
	}
	return out
}

func kindForStatus(code int) FailureKind {
	switch {
	case code == 401 || code == 403:
		return FailureAuth
	case code == 429:
		return FailureRateLimit
	case code == 503:
		return FailureUnavailable
	default:
		return FailureGeneric
	}
}

func classifyByString(errStr string) FailureKind {
	switch {
	case strings.Contains(errStr, "401"):
		return FailureAuth
	case strings.Contains(errStr, "429"):
		return FailureRateLimit
	case strings.Contains(errStr, "503"):
		return FailureUnavailable
	}

	lower := strings.ToLower(errStr)
	for _, p := range []string{"rate limit", "too many requests"} {
		if strings.Contains(lower, p) {
			return FailureRateLimit
		}
	}
	return FailureGeneric
}
