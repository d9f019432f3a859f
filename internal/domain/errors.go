package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrEmbedding matches every EmbeddingError via errors.Is.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmptyCorpus reports that the indexed corpus produced no chunks.
	ErrEmptyCorpus = errors.New("empty corpus")

	// ErrNotIndexed reports that no corpus has been indexed yet.
	ErrNotIndexed = errors.New("corpus not indexed")
)

// ConfigurationError reports an invalid chunking or retrieval parameter.
// It is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

// NewConfigurationError builds a ConfigurationError for field.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// EmbeddingErrorKind classifies collaborator failures.
type EmbeddingErrorKind string

const (
	EmbeddingNetwork   EmbeddingErrorKind = "network"
	EmbeddingTimeout   EmbeddingErrorKind = "timeout"
	EmbeddingServer    EmbeddingErrorKind = "server"
	EmbeddingAuth      EmbeddingErrorKind = "auth"
	EmbeddingQuota     EmbeddingErrorKind = "quota"
	EmbeddingMalformed EmbeddingErrorKind = "malformed"
	EmbeddingUnknown   EmbeddingErrorKind = "unknown"
)

// Transient reports whether failures of this kind may succeed on retry.
func (k EmbeddingErrorKind) Transient() bool {
	switch k {
	case EmbeddingNetwork, EmbeddingTimeout, EmbeddingServer:
		return true
	default:
		return false
	}
}

// EmbeddingError is returned when the embedding collaborator fails.
type EmbeddingError struct {
	Kind   EmbeddingErrorKind
	Reason string
	Err    error
}

// NewEmbeddingError wraps err with a kind and a short reason.
func NewEmbeddingError(kind EmbeddingErrorKind, reason string, err error) *EmbeddingError {
	return &EmbeddingError{Kind: kind, Reason: reason, Err: err}
}

func (e *EmbeddingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("embedding %s error: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("embedding %s error: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// Retryable reports whether the failure is transient.
func (e *EmbeddingError) Retryable() bool { return e.Kind.Transient() }

// AsEmbeddingError extracts an EmbeddingError from err's chain.
func AsEmbeddingError(err error) (*EmbeddingError, bool) {
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
