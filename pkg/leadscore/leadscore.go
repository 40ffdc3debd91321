package leadscore

import (
	"time"
)

// Lead source channels.
const (
	SourceReferral = "referral"
	SourcePartner  = "partner"
	SourceEvent    = "event"
	SourceSocial   = "social"
	SourceWebsite  = "website"
	SourceOther    = "other"
)

// Budget bands.
const (
	BudgetHigh         = "high"
	BudgetMedium       = "medium"
	BudgetLow          = "low"
	BudgetNotSpecified = "not_specified"
)

// Purchase timelines.
const (
	TimelineImmediate = "immediate"
	Timeline1To3      = "1-3_months"
	Timeline3To6      = "3-6_months"
	Timeline6To12     = "6-12_months"
	TimelineNotSure   = "not_sure"
)

// Interest levels.
const (
	InterestHigh   = "high"
	InterestMedium = "medium"
	InterestLow    = "low"
)

// Quality labels for a computed score.
const (
	QualityHot         = "Hot Lead"
	QualityWarm        = "Warm Lead"
	QualityCold        = "Cold Lead"
	QualityUnqualified = "Unqualified"
)

// Factors is the input record for scoring a sales lead.
// Empty strings and zero values mean the field was not supplied;
// missing fields score as the lowest bucket, never as an error.
type Factors struct {
	Source          string     `json:"source"`
	Budget          string     `json:"budget"`
	Timeline        string     `json:"timeline"`
	InterestLevel   string     `json:"interest_level"`
	EstimatedValue  float64    `json:"estimated_value"`
	ActivitiesCount int        `json:"activities_count"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	Converted       bool       `json:"converted"`
}

// ValueTier maps a minimum estimated deal value to a point award.
type ValueTier struct {
	Min    float64 `yaml:"min"`
	Points int     `yaml:"points"`
}

// Weights holds the point budget for each scoring factor.
// DefaultWeights returns the production values; overrides come from
// the engine YAML config. The scoring algorithm itself never changes,
// only the numbers.
type Weights struct {
	Source        map[string]int `yaml:"source"`
	SourceDefault int            `yaml:"source_default"`

	Budget   map[string]int `yaml:"budget"`
	Timeline map[string]int `yaml:"timeline"`

	Interest        map[string]int `yaml:"interest"`
	InterestDefault int            `yaml:"interest_default"`

	// ValueTiers must be ordered highest minimum first; the first tier
	// whose Min is <= the estimated value wins.
	ValueTiers []ValueTier `yaml:"value_tiers"`

	EngagementPerActivity int `yaml:"engagement_per_activity"`
	EngagementCap         int `yaml:"engagement_cap"`

	RecencyHotDays   int `yaml:"recency_hot_days"`
	RecencyHotBonus  int `yaml:"recency_hot_bonus"`
	RecencyWarmDays  int `yaml:"recency_warm_days"`
	RecencyWarmBonus int `yaml:"recency_warm_bonus"`

	QualityHotMin  int `yaml:"quality_hot_min"`
	QualityWarmMin int `yaml:"quality_warm_min"`
	QualityColdMin int `yaml:"quality_cold_min"`
}

// DefaultWeights returns the standard Wingside lead scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Source: map[string]int{
			SourceReferral: 20,
			SourcePartner:  15,
			SourceEvent:    12,
			SourceSocial:   10,
			SourceWebsite:  8,
			SourceOther:    5,
		},
		SourceDefault: 5,
		Budget: map[string]int{
			BudgetHigh:         20,
			BudgetMedium:       12,
			BudgetLow:          5,
			BudgetNotSpecified: 0,
		},
		Timeline: map[string]int{
			TimelineImmediate: 20,
			Timeline1To3:      15,
			Timeline3To6:      10,
			Timeline6To12:     5,
			TimelineNotSure:   2,
		},
		Interest: map[string]int{
			InterestHigh:   20,
			InterestMedium: 10,
			InterestLow:    3,
		},
		InterestDefault: 3,
		ValueTiers: []ValueTier{
			{Min: 100000, Points: 10},
			{Min: 50000, Points: 7},
			{Min: 20000, Points: 5},
			{Min: 5000, Points: 3},
			{Min: 1, Points: 1},
		},
		EngagementPerActivity: 2,
		EngagementCap:         10,
		RecencyHotDays:        7,
		RecencyHotBonus:       5,
		RecencyWarmDays:       30,
		RecencyWarmBonus:      3,
		QualityHotMin:         80,
		QualityWarmMin:        60,
		QualityColdMin:        40,
	}
}

// Score computes the qualification score for a lead, clamped to [0, 100].
// A converted lead always scores 0 regardless of other factors - it has
// exited the funnel and no longer competes for follow-up priority.
// Score is deterministic and side-effect free; it is cheap enough to
// recompute on every read.
func (w Weights) Score(f Factors, now time.Time) int {
	if f.Converted {
		return 0
	}

	total := 0
	total += w.sourcePoints(f.Source)
	total += w.budgetPoints(f.Budget)
	total += w.timelinePoints(f.Timeline)
	total += w.interestPoints(f.InterestLevel)
	total += w.valuePoints(f.EstimatedValue)
	total += w.engagementPoints(f.ActivitiesCount)
	total += w.recencyPoints(f.LastContactedAt, now)

	if total > 100 {
		return 100
	}
	if total < 0 {
		return 0
	}
	return total
}

// Quality maps a score to its human-readable label.
// Bounds are inclusive at the lower end and non-overlapping.
func (w Weights) Quality(score int) string {
	switch {
	case score >= w.QualityHotMin:
		return QualityHot
	case score >= w.QualityWarmMin:
		return QualityWarm
	case score >= w.QualityColdMin:
		return QualityCold
	default:
		return QualityUnqualified
	}
}

func (w Weights) sourcePoints(source string) int {
	if pts, ok := w.Source[source]; ok {
		return pts
	}
	// Unknown or missing source scores as "other", never errors.
	return w.SourceDefault
}

func (w Weights) budgetPoints(budget string) int {
	if pts, ok := w.Budget[budget]; ok {
		return pts
	}
	return 0
}

func (w Weights) timelinePoints(timeline string) int {
	if pts, ok := w.Timeline[timeline]; ok {
		return pts
	}
	return 0
}

func (w Weights) interestPoints(interest string) int {
	if pts, ok := w.Interest[interest]; ok {
		return pts
	}
	// Missing interest defaults to the "low" award.
	return w.InterestDefault
}

func (w Weights) valuePoints(value float64) int {
	if value <= 0 {
		return 0
	}
	for _, tier := range w.ValueTiers {
		if value >= tier.Min {
			return tier.Points
		}
	}
	return 0
}

func (w Weights) engagementPoints(activities int) int {
	if activities < 0 {
		activities = 0
	}
	pts := activities * w.EngagementPerActivity
	if pts > w.EngagementCap {
		return w.EngagementCap
	}
	return pts
}

func (w Weights) recencyPoints(lastContacted *time.Time, now time.Time) int {
	if lastContacted == nil || lastContacted.IsZero() {
		return 0
	}
	sinceContact := now.Sub(*lastContacted)
	if sinceContact <= time.Duration(w.RecencyHotDays)*24*time.Hour {
		return w.RecencyHotBonus
	}
	if sinceContact <= time.Duration(w.RecencyWarmDays)*24*time.Hour {
		return w.RecencyWarmBonus
	}
	return 0
}
