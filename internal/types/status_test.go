package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusOpen.Valid())
	assert.True(t, StatusClosed.Valid())
	assert.False(t, StatusBlocked.Valid(), "blocked is computed-only, never a storable value")
	assert.False(t, Status("bogus").Valid())
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusClosed.IsTerminal())
	assert.True(t, StatusDiscard.IsTerminal())
	assert.False(t, StatusOpen.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
}

func TestStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"open to in_progress", StatusOpen, StatusInProgress, true},
		{"open to closed", StatusOpen, StatusClosed, true},
		{"closed to open (reopen)", StatusClosed, StatusOpen, true},
		{"discard to open (resurrect)", StatusDiscard, StatusOpen, true},
		{"closed to discard", StatusClosed, StatusDiscard, true},
		{"open to discard directly forbidden", StatusOpen, StatusDiscard, false},
		{"in_progress to discard forbidden", StatusInProgress, StatusDiscard, false},
		{"closed to closed (idempotent close)", StatusClosed, StatusClosed, true},
		{"any to invalid status", StatusOpen, Status("bogus"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}
