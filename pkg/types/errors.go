package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every chunking component
var (
	// ErrInvalidArgument marks zero/negative sizes, nil predicates and missing parameters
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidConfiguration marks contradictory or out-of-range strategy parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrResilience marks checkpoint write or read failures
	ErrResilience = errors.New("resilience error")
	// ErrRecovery is returned when no valid checkpoint can be restored
	ErrRecovery = errors.New("recovery error")
	// ErrWorker marks a failure raised inside a parallel task
	ErrWorker = errors.New("worker error")
)

// Chunk validation errors
var (
	ErrEmptyChunk     = errors.New("chunk cannot be empty")
	ErrInvalidQuality = errors.New("quality score must be between 0 and 1")
)

// ParamError describes a rejected parameter with enough context to reproduce it
type ParamError struct {
	Op    string // Operation or constructor name
	Param string // Offending parameter
	Value any    // Offending value
	Err   error  // ErrInvalidArgument or ErrInvalidConfiguration
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %v: %s = %v", e.Op, e.Err, e.Param, e.Value)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}

// InvalidArgument builds an ErrInvalidArgument for op's param
func InvalidArgument(op, param string, value any) error {
	return &ParamError{Op: op, Param: param, Value: value, Err: ErrInvalidArgument}
}

// InvalidConfiguration builds an ErrInvalidConfiguration for op's param
func InvalidConfiguration(op, param string, value any) error {
	return &ParamError{Op: op, Param: param, Value: value, Err: ErrInvalidConfiguration}
}

// WorkerError wraps the failure of the parallel task that processed chunk Index
type WorkerError struct {
	Index int
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker error: chunk %d: %v", e.Index, e.Err)
}

// Unwrap exposes both the sentinel and the task's own error to errors.Is/As
func (e *WorkerError) Unwrap() []error {
	return []error{ErrWorker, e.Err}
}
