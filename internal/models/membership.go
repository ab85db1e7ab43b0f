package models

import (
	"time"

	"github.com/google/uuid"
)

type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipCancelled MembershipStatus = "cancelled"
)

// Membership is a player's class-credit allocation. At most one active
// membership exists per player; exhausted or lapsed memberships are
// soft-expired, never deleted.
type Membership struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	PlayerID         uuid.UUID        `db:"player_id" json:"player_id"`
	AllocatedClasses int              `db:"allocated_classes" json:"allocated_classes"`
	StartDate        time.Time        `db:"start_date" json:"start_date"`
	EndDate          *time.Time       `db:"end_date" json:"end_date,omitempty"`
	Status           MembershipStatus `db:"status" json:"status"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// CREATE TABLE club.memberships (
//     id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
//     player_id UUID NOT NULL,
//     allocated_classes INT NOT NULL CHECK (allocated_classes >= 0),
//     start_date TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
//     end_date TIMESTAMPTZ,
//     status TEXT NOT NULL DEFAULT 'active',
//     created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
// );
// CREATE UNIQUE INDEX memberships_one_active
//     ON club.memberships (player_id) WHERE status = 'active';
