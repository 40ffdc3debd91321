package tier

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Downgrade describes a single-step tier demotion for one customer.
// The caller persists it and uses it to drive notification and audit
// logging.
type Downgrade struct {
	OldTier      Tier `json:"old_tier"`
	NewTier      Tier `json:"new_tier"`
	OldPoints    int  `json:"old_points"`
	NewPoints    int  `json:"new_points"`
	PointsLost   int  `json:"points_lost"`
	DaysInactive int  `json:"days_inactive"`
}

// EvaluateDecay decides whether an inactive customer should be demoted
// one tier, and to what. It returns nil when no downgrade applies:
//   - the customer has been active within the inactivity window
//   - the customer has no points to decay
//   - the customer is already Wing Member (floor tier, nothing below it)
//
// A qualifying customer is demoted exactly one tier per evaluation and
// the balance is clamped down to the demoted tier's ceiling, never
// reset to zero. The function is pure: identical inputs always produce
// the identical result, so re-evaluating within a run cannot compound
// the demotion. A long-dormant Wingzard cascades to Wing Member only
// across separate runs, after the first demotion has been persisted.
func (t Thresholds) EvaluateDecay(points int, lastActivity, now time.Time) *Downgrade {
	if points <= 0 {
		return nil
	}

	inactive := now.Sub(lastActivity)
	if inactive < t.InactivityWindow {
		return nil
	}

	current := t.Classify(points)
	if current == WingMember {
		logrus.Debugf("customer inactive %v but already at floor tier, no decay", inactive)
		return nil
	}

	newTier := below(current)
	ceiling := t.demotionCap(current)
	newPoints := points
	if newPoints > ceiling {
		newPoints = ceiling
	}

	return &Downgrade{
		OldTier:      current,
		NewTier:      newTier,
		OldPoints:    points,
		NewPoints:    newPoints,
		PointsLost:   points - newPoints,
		DaysInactive: int(inactive.Hours() / 24),
	}
}
