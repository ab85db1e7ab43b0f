package snapshot_service

import (
	"context"
	"fmt"
	"time"

	"teamsync/internal/models"
	"teamsync/internal/repository"
	"teamsync/internal/service"

	"github.com/google/uuid"
)

// Project derives a display snapshot from a membership row and its ledger
// entries. Pure: no I/O, deterministic for identical inputs. Remaining is
// clamped to zero only for display; the store itself never lets the
// balance go negative.
func Project(membership *models.Membership, entries []models.LedgerEntry, now time.Time) models.MembershipSnapshot {
	sum := 0
	for _, entry := range entries {
		sum += entry.Delta
	}

	remaining := membership.AllocatedClasses + sum
	if remaining < 0 {
		remaining = 0
	}

	daysLeft := 0
	pastEnd := false
	if membership.EndDate != nil {
		pastEnd = now.After(*membership.EndDate)
		if !pastEnd {
			daysLeft = int(membership.EndDate.Sub(now).Hours() / 24)
		}
	}

	return models.MembershipSnapshot{
		MembershipID:     membership.ID.String(),
		PlayerID:         membership.PlayerID.String(),
		AllocatedClasses: membership.AllocatedClasses,
		Remaining:        remaining,
		DaysLeft:         daysLeft,
		ShouldDeactivate: remaining <= 0 || pastEnd,
		IsExpired:        pastEnd || membership.Status != models.MembershipActive,
	}
}

type snapshotService struct {
	membershipRepo repository.MembershipRepository
	ledgerRepo     repository.LedgerRepository
}

func NewSnapshotService(membershipRepo repository.MembershipRepository, ledgerRepo repository.LedgerRepository) service.SnapshotService {
	return &snapshotService{
		membershipRepo: membershipRepo,
		ledgerRepo:     ledgerRepo,
	}
}

func (s *snapshotService) GetSnapshot(ctx context.Context, playerID uuid.UUID) (*models.MembershipSnapshot, error) {
	membership, err := s.membershipRepo.GetActiveByPlayerID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetch membership: %w", err)
	}
	if membership == nil {
		return nil, nil
	}

	entries, err := s.ledgerRepo.ListByMembershipID(ctx, membership.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}

	snapshot := Project(membership, entries, time.Now())
	return &snapshot, nil
}
