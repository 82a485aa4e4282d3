package domain

import (
	"errors"
	"fmt"
)

// ConfigError reports a problem detected while building a run, before any
// provider is contacted. It is never retried.
type ConfigError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s=%q: %s", e.Key, e.Value, e.Reason)
}

// NewConfigError is a shorthand constructor.
func NewConfigError(key, value, reason string) *ConfigError {
	return &ConfigError{Key: key, Value: value, Reason: reason}
}

// FailureReason classifies a provider failure.
type FailureReason string

const (
	// ReasonTransient covers network errors, timeouts, rate limits and 5xx responses.
	ReasonTransient FailureReason = "transient"
	// ReasonProtocol covers responses that arrived but broke the contract.
	ReasonProtocol FailureReason = "protocol"
)

var (
	ErrTransient = errors.New("provider unavailable")
	ErrProtocol  = errors.New("provider response malformed")
)

// ProviderError wraps a failed call to an external embedding, LLM or
// rerank provider.
type ProviderError struct {
	Reason     FailureReason
	Provider   string
	Op         string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s failed (%s", e.Provider, e.Op, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(", after %d attempts", e.Attempts)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransient and ErrProtocol by reason.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Reason == ReasonTransient
	case ErrProtocol:
		return e.Reason == ReasonProtocol
	}
	return false
}

// Transient builds a transient ProviderError.
func Transient(provider, op string, status int, err error) *ProviderError {
	return &ProviderError{Reason: ReasonTransient, Provider: provider, Op: op, StatusCode: status, Err: err}
}

// Protocol builds a protocol ProviderError.
func Protocol(provider, op string, status int, err error) *ProviderError {
	return &ProviderError{Reason: ReasonProtocol, Provider: provider, Op: op, StatusCode: status, Err: err}
}

// ClassifyStatus maps an HTTP status code to a failure reason.
// 408, 429 and 5xx are worth retrying; other non-2xx codes are not.
func ClassifyStatus(status int) FailureReason {
	if status == 408 || status == 429 || status >= 500 {
		return ReasonTransient
	}
	return ReasonProtocol
}

// EvaluationError reports a query that has retrieval output but no
// ground truth entry.
type EvaluationError struct {
	QueryID string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error: no ground truth for query %q", e.QueryID)
}
