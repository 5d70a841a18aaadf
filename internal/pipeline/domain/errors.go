package domain

import (
	"errors"
	"fmt"

	"media_pipeline/pkg/database"
)

// error kinds, match with errors.Is
var (
	ErrValidation    = errors.New("validation error")
	ErrStorage       = errors.New("storage error")
	ErrEnqueue       = errors.New("enqueue error")
	ErrTransform     = errors.New("transform error")
	ErrConnect       = database.ErrConnect
	ErrPoisonMessage = errors.New("poison message")
	ErrNotFound      = errors.New("not found")
	ErrInternal      = errors.New("internal error")
)

var kinds = []error{
	ErrValidation, ErrStorage, ErrEnqueue, ErrTransform,
	ErrConnect, ErrPoisonMessage, ErrNotFound, ErrInternal,
}

// PipelineError carries the kind of a failure, the operation and its cause
type PipelineError struct {
	Kind error
	Op   string
	Err  error
}

// NewError build a PipelineError
func NewError(kind error, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf the first known kind err matches, ErrInternal otherwise
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// TransformError is a failed conversion, Transient ones are worth retrying
type TransformError struct {
	Transient bool
	Err       error
}

// Transient wrap err as a retryable transform failure
func Transient(err error) *TransformError {
	return &TransformError{Transient: true, Err: err}
}

// Permanent wrap err as a transform failure retrying will not fix
func Permanent(err error) *TransformError {
	return &TransformError{Transient: false, Err: err}
}

func (e *TransformError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transform failed (transient): %v", e.Err)
	}
	return fmt.Sprintf("transform failed: %v", e.Err)
}

// Unwrap exposes ErrTransform and the cause
func (e *TransformError) Unwrap() []error {
	return []error{ErrTransform, e.Err}
}

// IsTransient report whether err is a TransformError marked transient
func IsTransient(err error) bool {
	var te *TransformError
	return errors.As(err, &te) && te.Transient
}
