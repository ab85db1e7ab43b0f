package membership

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"teamsync/internal/models"
	"teamsync/internal/repository"
	"teamsync/internal/repository/ledger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type membershipRepository struct {
	db *sqlx.DB
}

func NewMembershipRepository(db *sqlx.DB) repository.MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Create(ctx context.Context, membership *models.Membership) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRow(`
		INSERT INTO club.memberships
		(player_id, allocated_classes, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		membership.PlayerID,
		membership.AllocatedClasses,
		membership.StartDate,
		membership.EndDate,
		membership.Status,
	).Scan(&membership.ID, &membership.CreatedAt)
	if err != nil {
		// The partial unique index rejects a second active membership.
		return ledger.MapError(err)
	}

	if err := ledger.NotifyChange(tx, "memberships", "insert", membership.PlayerID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *membershipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.GetContext(ctx, &membership, `
		SELECT id, player_id, allocated_classes, start_date, end_date, status, created_at
		FROM club.memberships
		WHERE id = $1`,
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &membership, nil
}

func (r *membershipRepository) GetActiveByPlayerID(ctx context.Context, playerID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.GetContext(ctx, &membership, `
		SELECT id, player_id, allocated_classes, start_date, end_date, status, created_at
		FROM club.memberships
		WHERE player_id = $1 AND status = 'active'
		ORDER BY created_at DESC
		LIMIT 1`,
		playerID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

func (r *membershipRepository) ListByPlayerID(ctx context.Context, playerID uuid.UUID) ([]*models.Membership, error) {
	var memberships []*models.Membership
	err := r.db.SelectContext(ctx, &memberships, `
		SELECT id, player_id, allocated_classes, start_date, end_date, status, created_at
		FROM club.memberships
		WHERE player_id = $1
		ORDER BY created_at DESC`,
		playerID,
	)
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *membershipRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.MembershipStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var playerID uuid.UUID
	err = tx.QueryRow(`
		UPDATE club.memberships SET status = $1 WHERE id = $2
		RETURNING player_id`,
		status, id,
	).Scan(&playerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return ledger.MapError(err)
	}

	if err := ledger.NotifyChange(tx, "memberships", "update", playerID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *membershipRepository) ListExpirable(ctx context.Context, now time.Time) ([]*models.Membership, error) {
	var memberships []*models.Membership
	err := r.db.SelectContext(ctx, &memberships, `
		SELECT m.id, m.player_id, m.allocated_classes, m.start_date, m.end_date, m.status, m.created_at
		FROM club.memberships m
		LEFT JOIN club.ledger_entries l ON l.membership_id = m.id
		WHERE m.status = 'active'
		GROUP BY m.id
		HAVING (m.end_date IS NOT NULL AND m.end_date < $1)
		    OR m.allocated_classes + COALESCE(SUM(l.delta), 0) <= 0`,
		now,
	)
	if err != nil {
		return nil, err
	}
	return memberships, nil
}
