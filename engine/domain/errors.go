package domain

import (
	"errors"
	"fmt"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageStructuring Stage = "structuring"
	StageGraph       Stage = "graph_retrieval"
	StageVector      Stage = "vector_retrieval"
	StageSynthesis   Stage = "synthesis"
)

// Sentinel errors. Each stage failure matches its sentinel via errors.Is.
var (
	ErrStructuring       = errors.New("query structuring failed")
	ErrGraphRetrieval    = errors.New("graph retrieval failed")
	ErrVectorRetrieval   = errors.New("vector retrieval failed")
	ErrSynthesis         = errors.New("answer synthesis failed")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidQuery      = errors.New("invalid query")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrQueryTooLong      = errors.New("query too long")
)

var stageSentinels = map[Stage]error{
	StageStructuring: ErrStructuring,
	StageGraph:       ErrGraphRetrieval,
	StageVector:      ErrVectorRetrieval,
	StageSynthesis:   ErrSynthesis,
}

// StageError wraps a collaborator failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the sentinel of the stage.
func (e *StageError) Is(target error) bool {
	return stageSentinels[e.Stage] == target
}

// NewStageError creates a StageError. A nil err yields nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
