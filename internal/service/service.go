package service

import (
	"context"
	"time"

	"teamsync/internal/models"
	"teamsync/internal/repository"

	"github.com/google/uuid"
)

// DeltaRequest is one idempotent credit change against a membership.
type DeltaRequest struct {
	MembershipID  uuid.UUID
	PlayerID      uuid.UUID
	Delta         int
	Reason        models.LedgerReason
	SourceEventID *uuid.UUID
	CreatedBy     uuid.UUID
}

// DeltaResult carries the written (or previously written) entry together
// with the authoritative remaining balance.
type DeltaResult struct {
	Entry     *models.LedgerEntry
	Remaining int
	Applied   bool // false when the store had already settled this write
}

// LedgerService is the credit ledger client: validation, idempotency key
// derivation, single conflict retry and a bounded write timeout on top of
// the transactional store.
type LedgerService interface {
	ApplyDelta(ctx context.Context, req DeltaRequest) (*DeltaResult, error)
}

// ReconcilerService maps attendance status changes onto ledger deltas.
// Repeated saves of one (event, player) pair never accumulate more than
// one net credit change.
type ReconcilerService interface {
	Save(ctx context.Context, record repository.BatchRecord) (repository.RecordResult, error)
	SaveBatch(ctx context.Context, records []repository.BatchRecord) ([]repository.RecordResult, error)
}

// SnapshotService derives display-ready membership summaries.
type SnapshotService interface {
	// GetSnapshot returns nil without error when the player has no
	// active membership.
	GetSnapshot(ctx context.Context, playerID uuid.UUID) (*models.MembershipSnapshot, error)
}

// MembershipService covers membership lifecycle outside the attendance
// path: plan purchases, manual adjustments and the expiry sweep.
type MembershipService interface {
	CreateFromPlan(ctx context.Context, playerID uuid.UUID, planCode string, createdBy uuid.UUID) (*models.Membership, error)
	Adjust(ctx context.Context, membershipID uuid.UUID, delta int, createdBy uuid.UUID) (*DeltaResult, error)
	// ExpireLapsed soft-expires active memberships that are past their
	// end date or out of credits. Returns how many were expired.
	ExpireLapsed(ctx context.Context, now time.Time) (int, error)
}
