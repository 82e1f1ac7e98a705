package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFieldConflict is matched by every ConflictError.
	ErrFieldConflict = errors.New("decorator adds conflicting fields")

	// ErrProceedTwice is returned when an interceptor calls next more than once.
	ErrProceedTwice = errors.New("next called more than once")

	// ErrProceedAfterReturn is returned when next is called after its interceptor returned.
	ErrProceedAfterReturn = errors.New("next called after interceptor returned")

	// ErrChainExhausted is returned when the walk moves past the terminal handler.
	ErrChainExhausted = errors.New("chain walked past its end")

	// ErrUndeclaredField is returned when a decorator produces a field it did not declare.
	ErrUndeclaredField = errors.New("decorator produced undeclared field")

	// ErrFieldCollision is returned when a merge would overwrite a present field.
	ErrFieldCollision = errors.New("field already present")
)

// ConflictError is returned when a decorator's declared fields collide with
// fields already guaranteed by the pipeline.
type ConflictError struct {
	Decorator string
	Fields    []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pipeline: decorator %s adds conflicting fields: %s", e.Decorator, strings.Join(e.Fields, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrFieldConflict
}

// ProtocolError reports a misuse of the chain during dispatch. It is fatal
// for the request.
type ProtocolError struct {
	Step string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pipeline protocol violation in %s: %v", e.Step, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// StepError wraps a failure returned by a decorator or the terminal handler.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline step %s error: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// IsConflict returns true if err is a construction-time field conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsProtocolViolation returns true if err reports a misuse of next or of the chain.
func IsProtocolViolation(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
