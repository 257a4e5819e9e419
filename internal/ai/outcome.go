package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
)

// Outcome is the result of one gateway call. Every call yields a usable
// Value; Degraded is set when the value is a fallback rather than a real
// model answer, in which case Err holds the cause.
type Outcome[T any] struct {
	Value    T
	Degraded bool
	Err      error
	Kind     ErrorKind
}

// OK wraps a real model answer.
func OK[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Fallback wraps a fallback value together with the error that caused it.
func Fallback[T any](v T, err error) Outcome[T] {
	return Outcome[T]{
		Value:    v,
		Degraded: true,
		Err:      err,
		Kind:     ClassifyError(err),
	}
}

// ErrorKind tags a failure for logging. It never changes control flow.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindContentFilter ErrorKind = "content_filter"
	KindRateLimit     ErrorKind = "rate_limit"
	KindConnection    ErrorKind = "connection"
	KindBadRequest    ErrorKind = "bad_request"
	KindUnknown       ErrorKind = "unknown"
)

// Level is the log severity used when reporting an error of this kind.
func (k ErrorKind) Level() log.Level {
	switch k {
	case KindNone:
		return log.DebugLevel
	case KindContentFilter, KindRateLimit:
		return log.WarnLevel
	default:
		return log.ErrorLevel
	}
}

var kindPatterns = []struct {
	kind     ErrorKind
	patterns []string
}{
	{KindContentFilter, []string{
		"content_filter", "content filter", "content management policy",
		"content policy", "responsible ai", "safety system", "flagged",
	}},
	{KindRateLimit, []string{
		"rate limit", "rate_limit", "ratelimit", "429", "too many requests",
		"quota", "overloaded",
	}},
	{KindConnection, []string{
		"timeout", "timed out", "deadline exceeded", "connection refused",
		"connection reset", "no such host", "broken pipe", "eof",
		"network", "unreachable", "tls handshake", "connection lost",
	}},
	{KindBadRequest, []string{
		"400", "bad request", "invalid_request", "invalid request",
		"malformed", "context_length_exceeded", "maximum context length",
	}},
}

// ClassifyError maps an error onto an ErrorKind by matching well-known
// substrings of its message. A nil error is KindNone.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindConnection
	}

	msg := strings.ToLower(err.Error())
	for _, group := range kindPatterns {
		for _, p := range group.patterns {
			if strings.Contains(msg, p) {
				return group.kind
			}
		}
	}
	return KindUnknown
}
