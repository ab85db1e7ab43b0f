package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"teamsync/internal/models"
	"teamsync/internal/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
}

// changePayload is pushed over pg_notify so the synchronizer can
// invalidate the scopes a write touched.
type changePayload struct {
	Table     string `json:"table"`
	Operation string `json:"operation"`
	ScopeID   string `json:"scope_id"`
}

func NotifyChange(tx *sqlx.Tx, table, operation string, scopeID uuid.UUID) error {
	payload, err := json.Marshal(changePayload{Table: table, Operation: operation, ScopeID: scopeID.String()})
	if err != nil {
		return err
	}
	_, err = tx.Exec(`SELECT pg_notify('club_changes', $1)`, string(payload))
	return err
}

func (r *ledgerRepository) ApplyDelta(ctx context.Context, entry *models.LedgerEntry) (int, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin apply delta: %w", err)
	}
	defer tx.Rollback()

	remaining, applied, err := ApplyDeltaTx(tx, entry)
	if err != nil {
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, MapError(err)
	}
	return remaining, applied, nil
}

// ApplyDeltaTx runs the delta protocol inside an open transaction so the
// attendance batch can reuse it. The membership row is locked first; the
// state check and the append are then race-free.
//
// Idempotency for attendance-driven deltas is state-based on the pair's
// net ledger sum: a charge applies only while the pair is uncharged and a
// refund only while a charge is outstanding. A retried call therefore
// no-ops with the prior entry's outcome, while a genuine re-charge after
// a refund (present, absent, present again) appends a fresh entry.
func ApplyDeltaTx(tx *sqlx.Tx, entry *models.LedgerEntry) (int, bool, error) {
	var allocated int
	err := tx.Get(&allocated, `
		SELECT allocated_classes FROM club.memberships
		WHERE id = $1
		FOR UPDATE`,
		entry.MembershipID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, repository.ErrNotFound
		}
		return 0, false, MapError(err)
	}

	if entry.SourceEventID != nil {
		var pairNet int
		if err := tx.Get(&pairNet, `
			SELECT COALESCE(SUM(delta), 0) FROM club.ledger_entries
			WHERE source_event_id = $1 AND player_id = $2`,
			entry.SourceEventID, entry.PlayerID,
		); err != nil {
			return 0, false, MapError(err)
		}

		charged := pairNet < 0
		if (entry.Delta < 0 && charged) || (entry.Delta > 0 && !charged) {
			// Already settled; hand back the prior outcome unchanged.
			var existing models.LedgerEntry
			err := tx.Get(&existing, `
				SELECT id, membership_id, player_id, delta, reason, source_event_id, created_at, created_by
				FROM club.ledger_entries
				WHERE source_event_id = $1 AND player_id = $2 AND reason = $3
				ORDER BY created_at DESC
				LIMIT 1`,
				entry.SourceEventID, entry.PlayerID, entry.Reason,
			)
			if err == nil {
				*entry = existing
			} else if !errors.Is(err, sql.ErrNoRows) {
				return 0, false, MapError(err)
			}
			remaining, err := remainingFor(tx, entry.MembershipID)
			return remaining, false, err
		}
	}

	var sum int
	if err := tx.Get(&sum, `
		SELECT COALESCE(SUM(delta), 0) FROM club.ledger_entries
		WHERE membership_id = $1`,
		entry.MembershipID,
	); err != nil {
		return 0, false, MapError(err)
	}

	remaining := allocated + sum + entry.Delta
	if remaining < 0 {
		return 0, false, repository.ErrInsufficientCredit
	}

	err = tx.QueryRow(`
		INSERT INTO club.ledger_entries
		(membership_id, player_id, delta, reason, source_event_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		entry.MembershipID,
		entry.PlayerID,
		entry.Delta,
		entry.Reason,
		entry.SourceEventID,
		entry.CreatedBy,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return 0, false, MapError(err)
	}

	if err := NotifyChange(tx, "ledger_entries", "insert", entry.PlayerID); err != nil {
		return 0, false, err
	}

	return remaining, true, nil
}

func remainingFor(tx *sqlx.Tx, membershipID uuid.UUID) (int, error) {
	var remaining int
	err := tx.Get(&remaining, `
		SELECT m.allocated_classes + COALESCE(SUM(l.delta), 0)
		FROM club.memberships m
		LEFT JOIN club.ledger_entries l ON l.membership_id = m.id
		WHERE m.id = $1
		GROUP BY m.allocated_classes`,
		membershipID,
	)
	if err != nil {
		return 0, MapError(err)
	}
	return remaining, nil
}

func (r *ledgerRepository) ListByMembershipID(ctx context.Context, membershipID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, membership_id, player_id, delta, reason, source_event_id, created_at, created_by
		FROM club.ledger_entries
		WHERE membership_id = $1
		ORDER BY created_at`,
		membershipID,
	)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ledgerRepository) SumDeltas(ctx context.Context, membershipID uuid.UUID) (int, error) {
	var sum int
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(delta), 0) FROM club.ledger_entries WHERE membership_id = $1`,
		membershipID,
	)
	return sum, err
}

// MapError folds driver errors into the store taxonomy. Unique and
// serialization failures both mean a concurrent writer won a race the
// caller may safely retry.
func MapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return repository.ErrConflict
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return repository.ErrConflict
		}
	}
	return err
}
