package service

import (
	"time"

	"github.com/wingside/loyalty-engine/pkg/tier"
)

// Lead is a sales lead row as stored by the lead store.
type Lead struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Source          string     `json:"source"`
	Budget          string     `json:"budget"`
	Timeline        string     `json:"timeline"`
	InterestLevel   string     `json:"interest_level"`
	EstimatedValue  float64    `json:"estimated_value"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	Converted       bool       `json:"converted"`
	Score           int        `json:"score"`
	Quality         string     `json:"quality"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Customer is a customer's loyalty state. TotalPoints starts at zero
// on account creation, grows through award events and shrinks only
// through decay. Tier is maintained on every write; after a decay it
// may sit below what the points alone would classify (decay is a
// one-way ratchet).
type Customer struct {
	ID             string    `json:"id"`
	TotalPoints    int       `json:"total_points"`
	Tier           tier.Tier `json:"tier"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Qualifying award event types.
const (
	EventPurchase     = "purchase"
	EventReferral     = "referral"
	EventSocialFollow = "social_follow"
	EventMilestone    = "milestone"
)

// PointsEvent is a single award of loyalty points to a customer.
type PointsEvent struct {
	Type      string `json:"type"`
	Points    int    `json:"points"`
	Reference string `json:"reference,omitempty"`
}

// TierChange is an audit record of a tier transition, from either an
// award-driven promotion or a decay-driven demotion.
type TierChange struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	OldTier    tier.Tier `json:"old_tier"`
	NewTier    tier.Tier `json:"new_tier"`
	Reason     string    `json:"reason"`
	PointsLost int       `json:"points_lost"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Tier change reasons.
const (
	TierChangePromotion = "points_threshold"
	TierChangeDecay     = "inactivity_decay"
)
