package membership_service

import (
	"context"
	"fmt"
	"time"

	"teamsync/internal/models"
	"teamsync/internal/repository"
	"teamsync/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type membershipService struct {
	membershipRepo repository.MembershipRepository
	ledgerService  service.LedgerService
	plans          map[string]models.MembershipPlan
	logger         *zap.Logger
}

func NewMembershipService(membershipRepo repository.MembershipRepository, ledgerService service.LedgerService, plans []models.MembershipPlan, logger *zap.Logger) service.MembershipService {
	byCode := make(map[string]models.MembershipPlan, len(plans))
	for _, plan := range plans {
		byCode[plan.Code] = plan
	}
	return &membershipService{
		membershipRepo: membershipRepo,
		ledgerService:  ledgerService,
		plans:          byCode,
		logger:         logger,
	}
}

func (s *membershipService) CreateFromPlan(ctx context.Context, playerID uuid.UUID, planCode string, createdBy uuid.UUID) (*models.Membership, error) {
	plan, ok := s.plans[planCode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", service.ErrUnknownPlan, planCode)
	}

	existing, err := s.membershipRepo.GetActiveByPlayerID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("check active membership: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: player %s already has an active membership", service.ErrValidation, playerID)
	}

	now := time.Now()
	membership := &models.Membership{
		PlayerID:         playerID,
		AllocatedClasses: plan.AllocatedClasses,
		StartDate:        now,
		Status:           models.MembershipActive,
	}
	if plan.DurationDays > 0 {
		end := now.AddDate(0, 0, plan.DurationDays)
		membership.EndDate = &end
	}

	if err := s.membershipRepo.Create(ctx, membership); err != nil {
		return nil, err
	}

	s.logger.Info("membership created",
		zap.String("player_id", playerID.String()),
		zap.String("plan", planCode),
		zap.Int("allocated", plan.AllocatedClasses))
	return membership, nil
}

// Adjust applies an admin-initiated manual correction through the ledger
// client so it gets the same idempotency and retry treatment as every
// other write.
func (s *membershipService) Adjust(ctx context.Context, membershipID uuid.UUID, delta int, createdBy uuid.UUID) (*service.DeltaResult, error) {
	membership, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	return s.ledgerService.ApplyDelta(ctx, service.DeltaRequest{
		MembershipID: membership.ID,
		PlayerID:     membership.PlayerID,
		Delta:        delta,
		Reason:       models.ReasonManualAdjustment,
		CreatedBy:    createdBy,
	})
}

func (s *membershipService) ExpireLapsed(ctx context.Context, now time.Time) (int, error) {
	lapsed, err := s.membershipRepo.ListExpirable(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expirable: %w", err)
	}

	expired := 0
	for _, membership := range lapsed {
		if err := s.membershipRepo.UpdateStatus(ctx, membership.ID, models.MembershipExpired); err != nil {
			s.logger.Error("expire membership failed",
				zap.String("membership_id", membership.ID.String()),
				zap.Error(err))
			continue
		}
		expired++
	}

	if expired > 0 {
		s.logger.Info("expiry sweep finished", zap.Int("expired", expired))
	}
	return expired, nil
}
