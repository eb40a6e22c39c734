package charge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrBusy is returned when a submission is already in flight
	ErrBusy = errors.New("a submission is already in progress")
	// ErrStale is returned when a response arrives for an attempt that was reset
	ErrStale = errors.New("charge attempt was reset")
	// ErrRestartRequired is returned when the flow can only continue after a reset
	ErrRestartRequired = errors.New("charge must be restarted")
	// ErrTerminated is returned for submissions after a successful charge
	ErrTerminated = errors.New("charge already completed")
	// ErrWrongStep is returned when the submission does not match the current step
	ErrWrongStep = errors.New("submission does not match the current step")
	// ErrNotFound is returned by the registry for unknown flows
	ErrNotFound = errors.New("charge flow not found")
)

// UnexpectedResponseMessage is shown for rejections without a server message
const UnexpectedResponseMessage = "unexpected response from payment server"

// ValidationError carries field-scoped input errors, keyed by field name.
// It never reaches the network.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// TransportError wraps a failed gateway call. The step is unchanged and the
// same submission may be retried.
type TransportError struct {
	Step Step
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("payment request failed at %s: %v", e.Step, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectionError is a well-formed response the flow cannot continue from.
// Only a reset recovers.
type RejectionError struct {
	Status  string
	Message string
}

func (e *RejectionError) Error() string {
	if e.Status == "" {
		return "payment rejected: " + e.Message
	}
	return fmt.Sprintf("payment rejected (%s): %s", e.Status, e.Message)
}
