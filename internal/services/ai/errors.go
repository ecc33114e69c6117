package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code classifies a chat failure for callers.
type Code string

const (
	CodeInvalidArgument    Code = "invalid-argument"
	CodeFailedPrecondition Code = "failed-precondition"
	CodeResourceExhausted  Code = "resource-exhausted"
	CodeInternal           Code = "internal"
)

// Caller-facing messages.
const (
	MsgMessageRequired = "Message is required."
	MsgNotConfigured   = "System configuration error. API Key not found."
	MsgTooManyRequests = "Too many requests. Please try again in an hour."
	MsgInternal        = "Internal Server Error"
)

// HTTPStatus maps a code to the status the REST endpoint returns.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument, CodeFailedPrecondition:
		return http.StatusBadRequest
	case CodeResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CallableStatus maps a code to the upper-case status used by the callable protocol ("RESOURCE_EXHAUSTED").
func (c Code) CallableStatus() string {
	if c == "" {
		return "INTERNAL"
	}
	return strings.ToUpper(strings.ReplaceAll(string(c), "-", "_"))
}

// Error is a typed chat failure. Message is safe to show to callers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// NewError creates a typed error without a cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError returns the typed error inside err, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// UpstreamError carries the upstream model's own failure message.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upstream error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s upstream error: %s", e.Provider, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsRateLimitError reports whether the upstream rejected the call for rate or quota reasons.
func IsRateLimitError(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// upstreamMessage picks the message surfaced for an upstream failure.
func upstreamMessage(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) && strings.TrimSpace(ue.Message) != "" {
		return ue.Message
	}
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		return err.Error()
	}
	return MsgInternal
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
