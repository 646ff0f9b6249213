package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCodeAndKind(t *testing.T) {
	err := New(CodeDuplicateReservation, "duplicate reservation")

	assert.ErrorIs(t, err, ErrDuplicate)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrCapacityExceeded)
	assert.NotErrorIs(t, err, ErrInvalidState)
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create: %w", New(CodeAlreadyCanceled, "already canceled"))

	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, ErrAlreadyCanceled)
	assert.Equal(t, CodeAlreadyCanceled, CodeOf(err))
	assert.Equal(t, KindInvalidState, KindOf(err))
}

func TestEveryCodeHasKind(t *testing.T) {
	for code, kind := range codeKinds {
		assert.NotEmpty(t, kind, "code %s", code)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "race lost", err: New(CodeConcurrentUpdate, "lost"), want: true},
		{name: "duplicate", err: New(CodeDuplicateReservation, "dup"), want: false},
		{name: "capacity", err: New(CodeCapacityExceeded, "full"), want: false},
		{name: "plain", err: errors.New("db down"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("deadlock")
	err := Wrap(CodeConcurrentUpdate, "reservation was modified concurrently", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "reservation was modified concurrently", err.Error())
}
