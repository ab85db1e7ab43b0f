package reconcile_service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"teamsync/internal/notify"
	"teamsync/internal/repository"
	"teamsync/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type reconcilerService struct {
	attendanceRepo repository.AttendanceRepository
	notifier       notify.Notifier
	logger         *zap.Logger
	locks          *pairLocks
	slots          *semaphore.Weighted
}

func NewReconcilerService(attendanceRepo repository.AttendanceRepository, notifier notify.Notifier, concurrency int, logger *zap.Logger) service.ReconcilerService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &reconcilerService{
		attendanceRepo: attendanceRepo,
		notifier:       notifier,
		logger:         logger,
		locks:          newPairLocks(),
		slots:          semaphore.NewWeighted(int64(concurrency)),
	}
}

// Save reconciles a single (event, player) pair. Saves for the same pair
// are queued, never concurrent, so they cannot race the idempotency
// check; saves for distinct pairs run in parallel under the slot cap.
func (s *reconcilerService) Save(ctx context.Context, record repository.BatchRecord) (repository.RecordResult, error) {
	if err := validateRecord(record); err != nil {
		return repository.RecordResult{PlayerID: record.PlayerID}, err
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return repository.RecordResult{PlayerID: record.PlayerID}, err
	}
	defer s.slots.Release(1)

	key := pairKey{eventID: record.EventID, playerID: record.PlayerID}
	s.locks.lock(key)
	defer s.locks.unlock(key)

	records := []repository.BatchRecord{record}
	results, err := s.attendanceRepo.SaveBatch(ctx, records)
	if err != nil {
		return repository.RecordResult{PlayerID: record.PlayerID}, err
	}
	results = s.retryConflicts(ctx, records, results)

	result := results[0]
	s.report(record.EventID, []repository.RecordResult{result})
	return result, nil
}

// SaveBatch applies a whole roster for one event through a single atomic
// store call. Partial failure is per player; one player without credit
// never blocks the rest.
func (s *reconcilerService) SaveBatch(ctx context.Context, records []repository.BatchRecord) ([]repository.RecordResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	eventID := records[0].EventID
	seen := make(map[uuid.UUID]bool, len(records))
	for _, record := range records {
		if err := validateRecord(record); err != nil {
			return nil, err
		}
		if record.EventID != eventID {
			return nil, fmt.Errorf("%w: batch must target a single event", service.ErrValidation)
		}
		if seen[record.PlayerID] {
			return nil, fmt.Errorf("%w: duplicate player %s in batch", service.ErrValidation, record.PlayerID)
		}
		seen[record.PlayerID] = true
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.slots.Release(1)

	// Lock every pair in a stable order so two overlapping batches for
	// the same event cannot deadlock.
	keys := make([]pairKey, 0, len(records))
	for _, record := range records {
		keys = append(keys, pairKey{eventID: record.EventID, playerID: record.PlayerID})
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].playerID.String() < keys[j].playerID.String()
	})
	for _, key := range keys {
		s.locks.lock(key)
	}
	defer func() {
		for _, key := range keys {
			s.locks.unlock(key)
		}
	}()

	results, err := s.attendanceRepo.SaveBatch(ctx, records)
	if err != nil {
		return nil, err
	}
	results = s.retryConflicts(ctx, records, results)

	s.report(eventID, results)
	return results, nil
}

// retryConflicts replays records that lost a concurrent-write race
// exactly once; the ledger's state guard makes the replay safe. Records
// still conflicted after the replay keep their error.
func (s *reconcilerService) retryConflicts(ctx context.Context, records []repository.BatchRecord, results []repository.RecordResult) []repository.RecordResult {
	var retry []repository.BatchRecord
	slots := make(map[uuid.UUID]int)
	for i, result := range results {
		if errors.Is(result.Err, repository.ErrConflict) {
			retry = append(retry, records[i])
			slots[result.PlayerID] = i
		}
	}
	if len(retry) == 0 {
		return results
	}

	s.logger.Info("retrying conflicted attendance records", zap.Int("count", len(retry)))
	retried, err := s.attendanceRepo.SaveBatch(ctx, retry)
	if err != nil {
		return results
	}
	for _, result := range retried {
		if i, ok := slots[result.PlayerID]; ok {
			results[i] = result
		}
	}
	return results
}

// report logs failures and pushes admin alerts. Notification problems
// stay out of the reconciliation result.
func (s *reconcilerService) report(eventID uuid.UUID, results []repository.RecordResult) {
	failed := 0
	for _, result := range results {
		if result.Err == nil {
			continue
		}
		failed++
		s.logger.Warn("attendance save rejected",
			zap.String("event_id", eventID.String()),
			zap.String("player_id", result.PlayerID.String()),
			zap.Error(result.Err))

		if errors.Is(result.Err, repository.ErrInsufficientCredit) {
			s.notifier.Notify(notify.SeverityWarning, fmt.Sprintf(
				"Player %s has no classes left on their membership (event %s). Attendance was not charged.",
				result.PlayerID, eventID))
		}
	}

	if failed > 0 && failed < len(results) {
		s.notifier.Notify(notify.SeverityInfo, fmt.Sprintf(
			"Attendance for event %s saved partially: %d of %d records applied.",
			eventID, len(results)-failed, len(results)))
	}
}

func validateRecord(record repository.BatchRecord) error {
	if !record.Status.Valid() {
		return fmt.Errorf("%w: unknown attendance status %q", service.ErrValidation, record.Status)
	}
	if record.EventID == uuid.Nil || record.PlayerID == uuid.Nil {
		return fmt.Errorf("%w: event id and player id are required", service.ErrValidation)
	}
	if record.RecordedBy == uuid.Nil {
		return fmt.Errorf("%w: recorded_by is required", service.ErrValidation)
	}
	return nil
}
