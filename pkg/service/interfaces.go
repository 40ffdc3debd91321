package service

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the requested record does
// not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidEvent is returned when an award event fails validation.
var ErrInvalidEvent = errors.New("invalid award event")

// Store interfaces for the persistence collaborators. The scoring and
// tier logic is pure and lives in pkg/leadscore and pkg/tier; these
// interfaces are the explicit boundary that replaced the stored
// procedures, and they make the services testable without a database.

// LeadStore supplies lead records and their activity counts, and
// persists computed scores.
type LeadStore interface {
	GetLead(ctx context.Context, leadID string) (*Lead, error)
	// CountActivities returns the number of logged touchpoints for a
	// lead, the engagement input to the scorer.
	CountActivities(ctx context.Context, leadID string) (int, error)
	UpdateScore(ctx context.Context, leadID string, score int, quality string) error
}

// CustomerStore supplies customer loyalty state and persists the
// results of award and decay evaluations.
type CustomerStore interface {
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	// ListDecayCandidates returns customers with a positive balance
	// whose last qualifying activity is at or before cutoff.
	ListDecayCandidates(ctx context.Context, cutoff time.Time) ([]Customer, error)
	// UpdateLoyalty applies fn to the customer's current state and
	// persists the result atomically. fn runs inside the store's
	// transaction boundary: read current state, compute next state,
	// write. An error from fn aborts the write.
	UpdateLoyalty(ctx context.Context, customerID string, fn func(c *Customer) error) (*Customer, error)
	RecordTierChange(ctx context.Context, change TierChange) error
}

// ScoreCache caches computed lead scores with a short TTL. A miss
// returns (nil, nil); scoring is cheap, so cache failures are never
// fatal to a read.
type ScoreCache interface {
	Get(ctx context.Context, leadID string) (*ScoredLead, error)
	Set(ctx context.Context, leadID string, scored *ScoredLead) error
	Invalidate(ctx context.Context, leadID string) error
}
