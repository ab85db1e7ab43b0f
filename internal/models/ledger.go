package models

import (
	"time"

	"github.com/google/uuid"
)

type LedgerReason string

const (
	ReasonAttendancePresent  LedgerReason = "attendance_present"
	ReasonAttendanceReversal LedgerReason = "attendance_reversal"
	ReasonManualAdjustment   LedgerReason = "manual_adjustment"
	ReasonRecurringGrant     LedgerReason = "recurring_grant"
)

// AttendanceReason reports whether the reason ties the entry to an
// attendance record, in which case SourceEventID must be set.
func (r LedgerReason) AttendanceReason() bool {
	return r == ReasonAttendancePresent || r == ReasonAttendanceReversal
}

// LedgerEntry is one append-only credit change. The ledger is the source
// of truth: remaining balance is always derived from the sum of deltas,
// never stored on its own. Entries are never mutated or deleted.
type LedgerEntry struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	MembershipID  uuid.UUID    `db:"membership_id" json:"membership_id"`
	PlayerID      uuid.UUID    `db:"player_id" json:"player_id"`
	Delta         int          `db:"delta" json:"delta"`
	Reason        LedgerReason `db:"reason" json:"reason"`
	SourceEventID *uuid.UUID   `db:"source_event_id" json:"source_event_id,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	CreatedBy     uuid.UUID    `db:"created_by" json:"created_by"`
}

// CREATE TABLE club.ledger_entries (
//     id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//     membership_id UUID NOT NULL REFERENCES club.memberships(id),
//     player_id UUID NOT NULL,
//     delta INT NOT NULL CHECK (delta <> 0),
//     reason TEXT NOT NULL,
//     source_event_id UUID,
//     created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
//     created_by UUID NOT NULL
// );
// CREATE INDEX ledger_entries_pair
//     ON club.ledger_entries (source_event_id, player_id)
//     WHERE source_event_id IS NOT NULL;
