package models

// MembershipSnapshot is the display-ready membership summary derived from
// a membership row plus its ledger entries. It is recomputed on every
// fetch and never persisted; a cached snapshot must be discarded, not
// merged, whenever authoritative data returns.
type MembershipSnapshot struct {
	MembershipID     string `json:"membership_id"`
	PlayerID         string `json:"player_id"`
	AllocatedClasses int    `json:"allocated_classes"`
	Remaining        int    `json:"remaining"`
	DaysLeft         int    `json:"days_left"`
	ShouldDeactivate bool   `json:"should_deactivate"`
	IsExpired        bool   `json:"is_expired"`
}
