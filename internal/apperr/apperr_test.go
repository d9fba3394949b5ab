package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"stale status is a transition conflict", fmt.Errorf("write: %w", ErrStaleStatus), KindInvalidTransition},
		{"invalid input", Invalid("quantity must be > 0"), KindInsufficientInput},
		{"not found", NotFound("order", 7), KindNotFound},
		{"infra", Infra("get order", errors.New("conn refused")), KindInfrastructure},
		{
			"partial wins over member error",
			&PartialGroupUpdateError{Op: "clean", Updated: []int64{1}, Failed: 2, Err: NotFound("table", 2)},
			KindPartialGroupUpdate,
		},
		{"follow-up reports the inner kind", &FollowUpError{Step: "release courier", Err: Infra("update", errors.New("x"))}, KindInfrastructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestInfra(t *testing.T) {
	assert.Nil(t, Infra("op", nil))

	timeout := Infra("get order", context.DeadlineExceeded)
	assert.ErrorIs(t, timeout, ErrInfrastructure)
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)
	assert.Contains(t, timeout.Error(), "timed out")

	// wrapping twice keeps a single classification
	twice := Infra("outer", Infra("inner", errors.New("x")))
	assert.ErrorIs(t, twice, ErrInfrastructure)
	assert.True(t, Retryable(twice))
	assert.False(t, Retryable(NotFound("order", 1)))
}

func TestPartialGroupUpdateError_Message(t *testing.T) {
	err := &PartialGroupUpdateError{Op: "join tables", Updated: []int64{3, 4}, Failed: 5, Err: errors.New("timeout")}
	assert.Equal(t, "join tables: partial group update: updated [3,4], failed at table 5: timeout", err.Error())
	assert.ErrorIs(t, err, ErrPartialGroupUpdate)
}
