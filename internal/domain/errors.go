package domain

import (
	"errors"
	"fmt"
)

// ErrMissingCredential marks a provider call attempted without an API key.
var ErrMissingCredential = errors.New("missing credential")

// ConfigurationError aborts a run before any unit is processed.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("configuration: %s", e.Setting)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ProviderError covers transport failures, non-2xx responses and malformed
// envelopes returned by a model backend.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ParseError is returned when model output is not the expected JSON document.
type ParseError struct {
	Reason  string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse model output: " + e.Reason
	}
	return fmt.Sprintf("parse model output: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
