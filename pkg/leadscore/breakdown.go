package leadscore

import (
	"fmt"
	"time"
)

// FactorContribution is one line of a score breakdown: the factor
// label, the raw input value it was computed from, and the points
// it contributed. Used by the admin UI to explain a lead's score.
type FactorContribution struct {
	Factor string `json:"factor"`
	Value  string `json:"value"`
	Points int    `json:"points"`
}

// Breakdown returns the per-factor contributions for a lead.
// Summing the contributions and clamping to [0, 100] yields the same
// number Score returns for a non-converted lead; the converted
// override is reported as its own zeroing entry so the UI can show
// why the lead scores 0.
func (w Weights) Breakdown(f Factors, now time.Time) []FactorContribution {
	if f.Converted {
		return []FactorContribution{
			{Factor: "converted", Value: "true", Points: 0},
		}
	}

	contributions := []FactorContribution{
		{Factor: "source", Value: orUnspecified(f.Source), Points: w.sourcePoints(f.Source)},
		{Factor: "budget", Value: orUnspecified(f.Budget), Points: w.budgetPoints(f.Budget)},
		{Factor: "timeline", Value: orUnspecified(f.Timeline), Points: w.timelinePoints(f.Timeline)},
		{Factor: "interest_level", Value: orUnspecified(f.InterestLevel), Points: w.interestPoints(f.InterestLevel)},
		{Factor: "estimated_value", Value: fmt.Sprintf("%.0f", f.EstimatedValue), Points: w.valuePoints(f.EstimatedValue)},
		{Factor: "engagement", Value: fmt.Sprintf("%d activities", f.ActivitiesCount), Points: w.engagementPoints(f.ActivitiesCount)},
	}

	recencyValue := "never contacted"
	if f.LastContactedAt != nil && !f.LastContactedAt.IsZero() {
		days := int(now.Sub(*f.LastContactedAt).Hours() / 24)
		recencyValue = fmt.Sprintf("%d days ago", days)
	}
	contributions = append(contributions, FactorContribution{
		Factor: "recency",
		Value:  recencyValue,
		Points: w.recencyPoints(f.LastContactedAt, now),
	})

	return contributions
}

func orUnspecified(v string) string {
	if v == "" {
		return "not_specified"
	}
	return v
}
