package models

import (
	"time"

	"github.com/google/uuid"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
)

// Charged reports whether the status consumes a class credit.
// Only present is charged; late and excused cost nothing.
func (s AttendanceStatus) Charged() bool {
	return s == StatusPresent
}

// Valid reports whether s is one of the recognised statuses.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// TransitionDelta returns the ledger delta required to move a pair from
// its persisted status to the requested one. A nil prev means no record
// exists yet. Moving onto present charges one class, moving off present
// refunds it, everything else nets to zero; re-saving the same status is
// always zero so repeated saves never accumulate.
func TransitionDelta(prev *AttendanceStatus, next AttendanceStatus) int {
	if prev != nil && *prev == next {
		return 0
	}
	prevCharged := prev != nil && prev.Charged()
	switch {
	case next.Charged() && !prevCharged:
		return -1
	case !next.Charged() && prevCharged:
		return +1
	}
	return 0
}

// AttendanceRecord is one player's attendance state for one scheduled
// event. The record can be re-saved any number of times; each save
// reconciles the ledger against the previously persisted status so a
// (event, player) pair never accumulates more than one net charge.
type AttendanceRecord struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	EventID    uuid.UUID        `db:"event_id" json:"event_id"`
	PlayerID   uuid.UUID        `db:"player_id" json:"player_id"`
	TeamID     uuid.UUID        `db:"team_id" json:"team_id"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Notes      string           `db:"notes" json:"notes"`
	RecordedBy uuid.UUID        `db:"recorded_by" json:"recorded_by"`
	RecordedAt time.Time        `db:"recorded_at" json:"recorded_at"`
}

// CREATE TABLE club.attendance (
//     id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//     event_id UUID NOT NULL,
//     player_id UUID NOT NULL,
//     team_id UUID NOT NULL,
//     status TEXT NOT NULL,
//     notes TEXT NOT NULL DEFAULT '',
//     recorded_by UUID NOT NULL,
//     recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
//     UNIQUE (event_id, player_id)
// );
