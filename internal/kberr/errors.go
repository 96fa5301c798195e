// Package kberr defines the error taxonomy shared across the knowledge
// base components: configuration errors (fatal at startup), gateway
// errors (completion/embedding backend) and store errors (vector
// backend). Soft decisions such as an unrecognized classification or a
// failed plausibility check are pipeline outcomes, not errors.
package kberr

import "fmt"

// ConfigError reports an invalid or inconsistent configuration, such as
// a missing section, an unsupported provider or an embedding dimension
// that disagrees with the collection. It aborts startup and is never
// retried.
type ConfigError struct {
	Section string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Section, e.Reason)
}

// Config builds a ConfigError for a section.
func Config(section, format string, args ...any) *ConfigError {
	return &ConfigError{Section: section, Reason: fmt.Sprintf(format, args...)}
}

// GatewayError reports a failed completion or embedding call, either a
// transport/backend failure or a response that violates the expected
// format (for example a non-numeric duplicate score).
type GatewayError struct {
	Op  string // "complete" or "embed"
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Gateway wraps err as a GatewayError for the given operation.
func Gateway(op string, err error) *GatewayError {
	return &GatewayError{Op: op, Err: err}
}

// StoreUnavailableError reports an unreachable or failing vector
// backend. The pipeline does not retry; the current turn fails.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// Store wraps err as a StoreUnavailableError for the given operation.
func Store(op string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Err: err}
}
