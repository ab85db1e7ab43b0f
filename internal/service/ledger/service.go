package ledger_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teamsync/internal/models"
	"teamsync/internal/repository"
	"teamsync/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	conflictBackoff  = 150 * time.Millisecond
	transportRetries = 2
)

type ledgerService struct {
	ledgerRepo   repository.LedgerRepository
	writeTimeout time.Duration
	logger       *zap.Logger
}

func NewLedgerService(ledgerRepo repository.LedgerRepository, writeTimeout time.Duration, logger *zap.Logger) service.LedgerService {
	return &ledgerService{
		ledgerRepo:   ledgerRepo,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (s *ledgerService) ApplyDelta(ctx context.Context, req service.DeltaRequest) (*service.DeltaResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		MembershipID:  req.MembershipID,
		PlayerID:      req.PlayerID,
		Delta:         req.Delta,
		Reason:        req.Reason,
		SourceEventID: req.SourceEventID,
		CreatedBy:     req.CreatedBy,
	}

	// A ledger write must complete or fail cleanly even when the caller
	// navigates away, so it runs detached from the caller's cancellation
	// under its own deadline. Idempotency lives in the store: a retried
	// attendance delta no-ops against the pair's net state.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	remaining, applied, err := s.applyWithRetry(writeCtx, entry)
	if err != nil {
		return nil, err
	}

	return &service.DeltaResult{Entry: entry, Remaining: remaining, Applied: applied}, nil
}

func (s *ledgerService) applyWithRetry(ctx context.Context, entry *models.LedgerEntry) (int, bool, error) {
	conflictRetried := false
	transportLeft := transportRetries

	for {
		remaining, applied, err := s.ledgerRepo.ApplyDelta(ctx, entry)
		switch {
		case err == nil:
			return remaining, applied, nil

		case errors.Is(err, repository.ErrConflict):
			if conflictRetried {
				s.logger.Warn("ledger conflict retry exhausted",
					zap.String("membership_id", entry.MembershipID.String()),
					zap.String("player_id", entry.PlayerID.String()))
				return 0, false, service.ErrRetryExhausted
			}
			conflictRetried = true

		case transientTransport(err):
			if transportLeft == 0 {
				s.logger.Error("ledger write unreachable", zap.Error(err))
				return 0, false, fmt.Errorf("%w: %v", service.ErrOffline, err)
			}
			transportLeft--

		default:
			// Insufficient credit, not found and everything else surface
			// unchanged; silent failure here would corrupt the credit
			// invariant.
			return 0, false, err
		}

		select {
		case <-time.After(conflictBackoff):
		case <-ctx.Done():
			return 0, false, fmt.Errorf("%w: %v", service.ErrOffline, ctx.Err())
		}
	}
}

func validateRequest(req service.DeltaRequest) error {
	if req.Delta == 0 {
		return fmt.Errorf("%w: delta must be non-zero", service.ErrValidation)
	}
	if req.MembershipID == uuid.Nil {
		return fmt.Errorf("%w: membership id is required", service.ErrValidation)
	}
	if req.Reason.AttendanceReason() && req.SourceEventID == nil {
		return fmt.Errorf("%w: source event id is required for %s", service.ErrValidation, req.Reason)
	}
	return nil
}
