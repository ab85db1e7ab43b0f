package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func status(s AttendanceStatus) *AttendanceStatus { return &s }

func TestTransitionDelta(t *testing.T) {
	tests := []struct {
		name string
		prev *AttendanceStatus
		next AttendanceStatus
		want int
	}{
		{"no record to present charges", nil, StatusPresent, -1},
		{"no record to absent is free", nil, StatusAbsent, 0},
		{"no record to late is free", nil, StatusLate, 0},
		{"no record to excused is free", nil, StatusExcused, 0},
		{"present to absent refunds", status(StatusPresent), StatusAbsent, +1},
		{"present to late refunds", status(StatusPresent), StatusLate, +1},
		{"present to excused refunds", status(StatusPresent), StatusExcused, +1},
		{"absent to present charges again", status(StatusAbsent), StatusPresent, -1},
		{"late to present charges", status(StatusLate), StatusPresent, -1},
		{"absent to late has no effect", status(StatusAbsent), StatusLate, 0},
		{"late to excused has no effect", status(StatusLate), StatusExcused, 0},
		{"present re-saved is a no-op", status(StatusPresent), StatusPresent, 0},
		{"absent re-saved is a no-op", status(StatusAbsent), StatusAbsent, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TransitionDelta(tt.prev, tt.next))
		})
	}
}

// present -> absent -> present must net to a single charge, never two.
func TestTransitionDeltaToggleNetsToOneCharge(t *testing.T) {
	sequence := []AttendanceStatus{StatusPresent, StatusAbsent, StatusPresent}

	net := 0
	var prev *AttendanceStatus
	for _, next := range sequence {
		net += TransitionDelta(prev, next)
		current := next
		prev = &current
	}

	require.Equal(t, -1, net)
}

// Re-applying the same status any number of times has exactly one net
// ledger effect.
func TestTransitionDeltaIdempotent(t *testing.T) {
	var prev *AttendanceStatus
	net := 0
	for i := 0; i < 5; i++ {
		net += TransitionDelta(prev, StatusPresent)
		prev = status(StatusPresent)
	}
	require.Equal(t, -1, net)
}
