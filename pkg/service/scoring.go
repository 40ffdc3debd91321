package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wingside/loyalty-engine/pkg/leadscore"
	"github.com/wingside/loyalty-engine/pkg/metrics"
)

// ScoredLead is the scoring result for one lead: the clamped score,
// its quality label, and the per-factor breakdown for display.
type ScoredLead struct {
	LeadID     string                         `json:"lead_id,omitempty"`
	Score      int                            `json:"score"`
	Quality    string                         `json:"quality"`
	Breakdown  []leadscore.FactorContribution `json:"breakdown"`
	ComputedAt time.Time                      `json:"computed_at"`
	Cached     bool                           `json:"cached,omitempty"`
}

// LeadScoringService computes and persists lead qualification scores.
// The computation itself is the pure leadscore engine; this service
// owns the fetch-compute-persist sequence and the read-through cache.
type LeadScoringService struct {
	leads   LeadStore
	cache   ScoreCache
	weights leadscore.Weights
	now     func() time.Time
}

// NewLeadScoringService creates a lead scoring service. cache may be
// nil to disable caching. now may be nil to use time.Now.
func NewLeadScoringService(leads LeadStore, cache ScoreCache, weights leadscore.Weights, now func() time.Time) *LeadScoringService {
	if now == nil {
		now = time.Now
	}
	return &LeadScoringService{
		leads:   leads,
		cache:   cache,
		weights: weights,
		now:     now,
	}
}

// ScoreLead fetches a lead and its activity count, computes the score
// and breakdown, persists the score on the lead row and caches the
// result. Cache failures are logged and ignored: recomputation is
// cheap and deterministic.
func (s *LeadScoringService) ScoreLead(ctx context.Context, leadID string) (*ScoredLead, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, leadID)
		if err != nil {
			logrus.Warnf("score cache read failed for lead %s: %v", leadID, err)
		} else if cached != nil {
			cached.Cached = true
			return cached, nil
		}
	}

	lead, err := s.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead %s: %w", leadID, err)
	}

	activities, err := s.leads.CountActivities(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to count activities for lead %s: %w", leadID, err)
	}

	factors := leadscore.Factors{
		Source:          lead.Source,
		Budget:          lead.Budget,
		Timeline:        lead.Timeline,
		InterestLevel:   lead.InterestLevel,
		EstimatedValue:  lead.EstimatedValue,
		ActivitiesCount: activities,
		LastContactedAt: lead.LastContactedAt,
		Converted:       lead.Converted,
	}

	scored := s.ScoreFactors(factors)
	scored.LeadID = leadID

	if err := s.leads.UpdateScore(ctx, leadID, scored.Score, scored.Quality); err != nil {
		return nil, fmt.Errorf("failed to persist score for lead %s: %w", leadID, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, leadID, scored); err != nil {
			logrus.Warnf("score cache write failed for lead %s: %v", leadID, err)
		}
	}

	logrus.Debugf("scored lead %s: score=%d quality=%s activities=%d",
		leadID, scored.Score, scored.Quality, activities)
	return scored, nil
}

// ScoreFactors scores an ad-hoc factors payload without touching
// storage. Used by the scoring preview endpoint.
func (s *LeadScoringService) ScoreFactors(f leadscore.Factors) *ScoredLead {
	now := s.now()
	score := s.weights.Score(f, now)
	quality := s.weights.Quality(score)
	metrics.LeadScoresComputed.WithLabelValues(quality).Inc()

	return &ScoredLead{
		Score:      score,
		Quality:    quality,
		Breakdown:  s.weights.Breakdown(f, now),
		ComputedAt: now,
	}
}

// InvalidateScore drops a lead's cached score, forcing the next read
// to recompute. Called when lead attributes or activities change.
func (s *LeadScoringService) InvalidateScore(ctx context.Context, leadID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, leadID)
}
