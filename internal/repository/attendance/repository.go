package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"teamsync/internal/models"
	"teamsync/internal/repository"
	"teamsync/internal/repository/ledger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type attendanceRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAttendanceRepository(db *sqlx.DB, logger *zap.Logger) repository.AttendanceRepository {
	return &attendanceRepository{db: db, logger: logger}
}

// SaveBatch applies every record in one transaction. Each record runs
// under its own savepoint so a rejected player (no membership, no credit)
// does not roll back the rest of the roster; its failure is reported in
// the per-player result instead.
func (r *attendanceRepository) SaveBatch(ctx context.Context, records []repository.BatchRecord) ([]repository.RecordResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch save: %w", err)
	}
	defer tx.Rollback()

	results := make([]repository.RecordResult, 0, len(records))
	for i, rec := range records {
		savepoint := fmt.Sprintf("rec_%d", i)
		if _, err := tx.Exec("SAVEPOINT " + savepoint); err != nil {
			return nil, ledger.MapError(err)
		}

		result := r.saveOne(tx, rec)
		if result.Err != nil {
			if _, err := tx.Exec("ROLLBACK TO SAVEPOINT " + savepoint); err != nil {
				return nil, ledger.MapError(err)
			}
		} else if _, err := tx.Exec("RELEASE SAVEPOINT " + savepoint); err != nil {
			return nil, ledger.MapError(err)
		}
		results = append(results, result)
	}

	if err := tx.Commit(); err != nil {
		return nil, ledger.MapError(err)
	}
	return results, nil
}

func (r *attendanceRepository) saveOne(tx *sqlx.Tx, rec repository.BatchRecord) repository.RecordResult {
	result := repository.RecordResult{PlayerID: rec.PlayerID}

	var prev *models.AttendanceStatus
	var prevStatus models.AttendanceStatus
	err := tx.Get(&prevStatus, `
		SELECT status FROM club.attendance
		WHERE event_id = $1 AND player_id = $2
		FOR UPDATE`,
		rec.EventID, rec.PlayerID,
	)
	switch {
	case err == nil:
		prev = &prevStatus
	case !errors.Is(err, sql.ErrNoRows):
		result.Err = ledger.MapError(err)
		return result
	}

	delta := models.TransitionDelta(prev, rec.Status)
	if delta != 0 {
		var membershipID uuid.UUID
		err := tx.Get(&membershipID, `
			SELECT id FROM club.memberships
			WHERE player_id = $1 AND status = 'active'`,
			rec.PlayerID,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Err = repository.ErrNoActiveMembership
			} else {
				result.Err = ledger.MapError(err)
			}
			return result
		}

		reason := models.ReasonAttendancePresent
		if delta > 0 {
			reason = models.ReasonAttendanceReversal
		}
		eventID := rec.EventID
		entry := &models.LedgerEntry{
			MembershipID:  membershipID,
			PlayerID:      rec.PlayerID,
			Delta:         delta,
			Reason:        reason,
			SourceEventID: &eventID,
			CreatedBy:     rec.RecordedBy,
		}
		remaining, applied, err := ledger.ApplyDeltaTx(tx, entry)
		if err != nil {
			result.Err = err
			return result
		}
		result.Credited = applied
		result.Remaining = remaining
	} else if prev != nil {
		// No ledger effect; keep the balance in the result anyway so the
		// caller can refresh its projection without a second fetch.
		remaining, err := currentRemaining(tx, rec.PlayerID)
		if err != nil {
			r.logger.Warn("remaining lookup failed",
				zap.String("player_id", rec.PlayerID.String()),
				zap.Error(err))
		} else {
			result.Remaining = remaining
		}
	}

	_, err = tx.Exec(`
		INSERT INTO club.attendance (event_id, player_id, team_id, status, notes, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, player_id) DO UPDATE
		SET status = EXCLUDED.status,
		    notes = EXCLUDED.notes,
		    recorded_by = EXCLUDED.recorded_by,
		    recorded_at = CURRENT_TIMESTAMP`,
		rec.EventID, rec.PlayerID, rec.TeamID, rec.Status, rec.Notes, rec.RecordedBy,
	)
	if err != nil {
		result.Err = ledger.MapError(err)
		return result
	}

	if err := ledger.NotifyChange(tx, "attendance", "update", rec.PlayerID); err != nil {
		result.Err = err
		return result
	}

	result.Applied = true
	return result
}

func currentRemaining(tx *sqlx.Tx, playerID uuid.UUID) (int, error) {
	var remaining int
	err := tx.Get(&remaining, `
		SELECT m.allocated_classes + COALESCE(SUM(l.delta), 0)
		FROM club.memberships m
		LEFT JOIN club.ledger_entries l ON l.membership_id = m.id
		WHERE m.player_id = $1 AND m.status = 'active'
		GROUP BY m.allocated_classes`,
		playerID,
	)
	return remaining, err
}

func (r *attendanceRepository) GetByEventAndPlayer(ctx context.Context, eventID, playerID uuid.UUID) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT id, event_id, player_id, team_id, status, notes, recorded_by, recorded_at
		FROM club.attendance
		WHERE event_id = $1 AND player_id = $2`,
		eventID, playerID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *attendanceRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, event_id, player_id, team_id, status, notes, recorded_by, recorded_at
		FROM club.attendance
		WHERE event_id = $1
		ORDER BY recorded_at`,
		eventID,
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *attendanceRepository) ListByPlayer(ctx context.Context, playerID uuid.UUID, start, end time.Time) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, event_id, player_id, team_id, status, notes, recorded_by, recorded_at
		FROM club.attendance
		WHERE player_id = $1 AND recorded_at BETWEEN $2 AND $3
		ORDER BY recorded_at DESC`,
		playerID, start, end,
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}
