package distributions

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed dumps, values outside a
	// family's support, and model/group mismatches. These are programming
	// errors; callers should validate before invoking the core.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange is returned when a mixture operation names a group id
	// outside [0, Len).
	ErrOutOfRange = errors.New("out of range")

	// ErrUnsupported is returned when an optional capability (Scorer,
	// VectorScorer, Mixture) is requested from a model family that does not
	// implement it. Use HasScorer/HasVectorScorer/HasMixture to detect
	// support in advance.
	ErrUnsupported = errors.New("unsupported")
)

// GroupIDError reports a mixture group id outside the dense id range.
//
// It matches ErrOutOfRange under errors.Is.
type GroupIDError struct {
	GroupID int
	Len     int
}

func (e *GroupIDError) Error() string {
	return fmt.Sprintf("group id %d out of range [0, %d)", e.GroupID, e.Len)
}

func (e *GroupIDError) Unwrap() error { return ErrOutOfRange }

// SupportError reports a value outside a model family's support.
//
// It matches ErrInvalidArgument under errors.Is.
type SupportError struct {
	Value   any
	Support string
}

func (e *SupportError) Error() string {
	return fmt.Sprintf("value %v outside support %s", e.Value, e.Support)
}

func (e *SupportError) Unwrap() error { return ErrInvalidArgument }

// MismatchError reports a group passed to a model it does not belong to,
// or a group of the wrong concrete type.
//
// It matches ErrInvalidArgument under errors.Is.
type MismatchError struct {
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("group/model mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *MismatchError) Unwrap() error { return ErrInvalidArgument }
