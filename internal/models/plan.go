package models

// MembershipPlan is read-only reference data describing a purchasable
// membership preset. DurationDays = 0 means no end date.
type MembershipPlan struct {
	Code             string `json:"code"`
	AllocatedClasses int    `json:"allocated_classes"`
	DurationDays     int    `json:"duration_days"`
}

// Default club presets.
var DefaultPlans = []MembershipPlan{
	{Code: "single", AllocatedClasses: 1, DurationDays: 30},
	{Code: "monthly-8", AllocatedClasses: 8, DurationDays: 30},
	{Code: "monthly-16", AllocatedClasses: 16, DurationDays: 30},
	{Code: "unlimited-12", AllocatedClasses: 12, DurationDays: 730},
}
