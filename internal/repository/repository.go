package repository

import (
	"context"
	"time"

	"teamsync/internal/models"

	"github.com/google/uuid"
)

// BatchRecord is one (player, status) pair in an attendance batch save.
type BatchRecord struct {
	EventID    uuid.UUID
	PlayerID   uuid.UUID
	TeamID     uuid.UUID
	Status     models.AttendanceStatus
	Notes      string
	RecordedBy uuid.UUID
}

// RecordResult is the per-player outcome of a batch save. A failed record
// never rolls back its siblings.
type RecordResult struct {
	PlayerID  uuid.UUID
	Applied   bool
	Credited  bool // a ledger charge or refund was written
	Remaining int  // remaining classes after the save, when Applied
	Err       error
}

type MembershipRepository interface {
	Create(ctx context.Context, membership *models.Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Membership, error)
	// GetActiveByPlayerID returns nil without error when the player has
	// no active membership.
	GetActiveByPlayerID(ctx context.Context, playerID uuid.UUID) (*models.Membership, error)
	ListByPlayerID(ctx context.Context, playerID uuid.UUID) ([]*models.Membership, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.MembershipStatus) error
	// ListExpirable returns active memberships whose end date has passed
	// or whose allocation is exhausted as of now.
	ListExpirable(ctx context.Context, now time.Time) ([]*models.Membership, error)
}

type LedgerRepository interface {
	// ApplyDelta appends a ledger entry and returns the derived remaining
	// balance plus whether a row was actually written. Attendance-driven
	// deltas are guarded by the pair's net state: a charge applies only
	// while the pair is uncharged, a refund only while a charge is
	// outstanding, so a retried call no-ops with the prior entry's
	// outcome while a re-charge after a refund writes a fresh entry.
	// Below-zero results are rejected with ErrInsufficientCredit.
	ApplyDelta(ctx context.Context, entry *models.LedgerEntry) (remaining int, applied bool, err error)
	ListByMembershipID(ctx context.Context, membershipID uuid.UUID) ([]models.LedgerEntry, error)
	SumDeltas(ctx context.Context, membershipID uuid.UUID) (int, error)
}

type AttendanceRepository interface {
	// SaveBatch applies all records for one event in a single
	// transaction, reconciling each player's ledger against the
	// previously persisted status. Failures are reported per record.
	SaveBatch(ctx context.Context, records []BatchRecord) ([]RecordResult, error)
	GetByEventAndPlayer(ctx context.Context, eventID, playerID uuid.UUID) (*models.AttendanceRecord, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendanceRecord, error)
	ListByPlayer(ctx context.Context, playerID uuid.UUID, start, end time.Time) ([]models.AttendanceRecord, error)
}
