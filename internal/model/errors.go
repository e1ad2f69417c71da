package model

import "fmt"

// ExternalCallError wraps a failed or malformed call to a collaborator
// (Slack, CircleCI, a subprocess).
type ExternalCallError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

// NewExternalCallError builds an ExternalCallError
func NewExternalCallError(service, op string, err error) error {
	return &ExternalCallError{Service: service, Op: op, Err: err}
}
