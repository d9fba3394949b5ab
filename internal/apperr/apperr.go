// Package apperr holds the error taxonomy shared by the orchestration
// packages. Callers classify errors with errors.Is against the sentinels
// or with KindOf.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrInsufficientInput  = errors.New("insufficient input")
	ErrNotFound           = errors.New("not found")
	ErrInfrastructure     = errors.New("infrastructure failure")
	ErrPartialGroupUpdate = errors.New("partial group update")

	// ErrStaleStatus is returned when a compare-and-swap observed a
	// different current state than the one the caller read.
	ErrStaleStatus = fmt.Errorf("%w: state changed concurrently", ErrInvalidTransition)
)

// Kind is the coarse class of an error.
type Kind string

const (
	KindUnknown            Kind = "UNKNOWN"
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindInsufficientInput  Kind = "INSUFFICIENT_INPUT"
	KindNotFound           Kind = "NOT_FOUND"
	KindInfrastructure     Kind = "INFRASTRUCTURE_FAILURE"
	KindPartialGroupUpdate Kind = "PARTIAL_GROUP_UPDATE_FAILURE"
)

// KindOf classifies err. Partial group updates win over the kind of the
// member error they wrap.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrPartialGroupUpdate):
		return KindPartialGroupUpdate
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrInsufficientInput):
		return KindInsufficientInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInfrastructure):
		return KindInfrastructure
	}
	return KindUnknown
}

// Retryable reports whether retrying the whole intent may succeed.
func Retryable(err error) bool {
	return KindOf(err) == KindInfrastructure
}

// Infra wraps a store or channel error as an infrastructure failure.
// Context expiry is kept visible so callers can tell a timeout apart.
func Infra(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInfrastructure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: timed out: %w", op, ErrInfrastructure, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrInfrastructure, err)
}

// NotFound builds a not-found error for an entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// Invalid builds an insufficient-input error.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInsufficientInput, fmt.Sprintf(format, args...))
}

// PartialGroupUpdateError reports a grouped-table operation that failed
// after some members were already written. Prior writes are not reverted.
type PartialGroupUpdateError struct {
	Op      string
	Updated []int64
	Failed  int64
	Err     error
}

func (e *PartialGroupUpdateError) Error() string {
	ids := make([]string, len(e.Updated))
	for i, id := range e.Updated {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s: partial group update: updated [%s], failed at table %d: %v",
		e.Op, strings.Join(ids, ","), e.Failed, e.Err)
}

func (e *PartialGroupUpdateError) Unwrap() []error {
	return []error{ErrPartialGroupUpdate, e.Err}
}

// FollowUpError reports a side effect that failed after the primary write
// was committed. Result holds the committed entity.
type FollowUpError struct {
	Step   string
	Result any
	Err    error
}

func (e *FollowUpError) Error() string {
	return fmt.Sprintf("follow-up %s failed after commit: %v", e.Step, e.Err)
}

func (e *FollowUpError) Unwrap() error { return e.Err }
