package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wingside/loyalty-engine/pkg/metrics"
	"github.com/wingside/loyalty-engine/pkg/tier"
)

// AwardResult is the outcome of a points award: the updated customer
// plus the tier change, if the award crossed a threshold.
type AwardResult struct {
	Customer   *Customer   `json:"customer"`
	Awarded    int         `json:"awarded"`
	TierChange *TierChange `json:"tier_change,omitempty"`
}

// LoyaltyService owns the customer loyalty lifecycle: awarding points,
// promoting tiers on threshold crossings, and reading current state.
// Demotion is never done here; that is the decay batch's job.
type LoyaltyService struct {
	customers  CustomerStore
	thresholds tier.Thresholds
	now        func() time.Time
}

// NewLoyaltyService creates a loyalty service. now may be nil to use
// time.Now.
func NewLoyaltyService(customers CustomerStore, thresholds tier.Thresholds, now func() time.Time) *LoyaltyService {
	if now == nil {
		now = time.Now
	}
	return &LoyaltyService{
		customers:  customers,
		thresholds: thresholds,
		now:        now,
	}
}

// GetLoyalty returns a customer's current loyalty state.
func (s *LoyaltyService) GetLoyalty(ctx context.Context, customerID string) (*Customer, error) {
	return s.customers.GetCustomer(ctx, customerID)
}

// AwardPoints applies a qualifying award event to a customer inside
// the store's transaction boundary: read current state, add points,
// reclassify the tier, bump the activity timestamp, write atomically.
// Promotion is checked on every award; points never decrease here.
func (s *LoyaltyService) AwardPoints(ctx context.Context, customerID string, event PointsEvent) (*AwardResult, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	now := s.now()
	var change *TierChange

	updated, err := s.customers.UpdateLoyalty(ctx, customerID, func(c *Customer) error {
		oldTier := c.Tier
		c.TotalPoints += event.Points
		c.LastActivityAt = now

		newTier := s.thresholds.Classify(c.TotalPoints)
		// Awards only ever move the tier up. A customer whose stored
		// tier was ratcheted down by decay is re-promoted here once
		// the balance crosses the threshold again.
		if tierRank(newTier) > tierRank(oldTier) {
			c.Tier = newTier
			change = &TierChange{
				ID:         uuid.NewString(),
				CustomerID: customerID,
				OldTier:    oldTier,
				NewTier:    newTier,
				Reason:     TierChangePromotion,
				OccurredAt: now,
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to award points to customer %s: %w", customerID, err)
	}

	metrics.PointsAwarded.WithLabelValues(event.Type).Add(float64(event.Points))

	if change != nil {
		if err := s.customers.RecordTierChange(ctx, *change); err != nil {
			// The award itself committed; the audit record is retried
			// by the caller or reconstructed from the points history.
			logrus.Errorf("failed to record tier change for customer %s: %v", customerID, err)
		}
		metrics.TierChanges.WithLabelValues(string(change.OldTier), string(change.NewTier), change.Reason).Inc()
		logrus.Infof("customer %s promoted: %s -> %s (%d points)",
			customerID, change.OldTier, change.NewTier, updated.TotalPoints)
	}

	logrus.Debugf("awarded %d points to customer %s (%s), balance=%d",
		event.Points, customerID, event.Type, updated.TotalPoints)

	return &AwardResult{
		Customer:   updated,
		Awarded:    event.Points,
		TierChange: change,
	}, nil
}

func validateEvent(event PointsEvent) error {
	switch event.Type {
	case EventPurchase, EventReferral, EventSocialFollow, EventMilestone:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, event.Type)
	}
	if event.Points < 0 {
		return fmt.Errorf("%w: points must be non-negative, got %d", ErrInvalidEvent, event.Points)
	}
	return nil
}

// tierRank orders tiers for promotion checks.
func tierRank(t tier.Tier) int {
	switch t {
	case tier.Wingzard:
		return 2
	case tier.WingLeader:
		return 1
	default:
		return 0
	}
}
