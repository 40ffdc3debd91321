package tier

import (
	"time"
)

// Tier is a loyalty tier name as displayed to customers.
type Tier string

// Loyalty tiers, lowest to highest.
const (
	WingMember Tier = "Wing Member"
	WingLeader Tier = "Wing Leader"
	Wingzard   Tier = "Wingzard"
)

// Thresholds holds the point boundaries between tiers and the
// inactivity window that triggers decay.
//
// A balance of WingLeaderMin points is the lowest that classifies as
// Wing Leader; WingzardMin likewise for Wingzard. Everything below
// WingLeaderMin is Wing Member, the floor tier.
type Thresholds struct {
	WingLeaderMin    int           `yaml:"wing_leader_min"`
	WingzardMin      int           `yaml:"wingzard_min"`
	InactivityWindow time.Duration `yaml:"inactivity_window"`
}

// DefaultThresholds returns the production tier boundaries.
// The inactivity window uses the fixed 30-day month approximation
// (6 months = 180 days).
func DefaultThresholds() Thresholds {
	return Thresholds{
		WingLeaderMin:    5001,
		WingzardMin:      20001,
		InactivityWindow: 6 * 30 * 24 * time.Hour,
	}
}

// Classify maps a points balance to its tier. Evaluated top-down,
// first match wins: 5000 points is Wing Member, 5001 is Wing Leader,
// 20000 is Wing Leader, 20001 is Wingzard.
func (t Thresholds) Classify(points int) Tier {
	switch {
	case points >= t.WingzardMin:
		return Wingzard
	case points >= t.WingLeaderMin:
		return WingLeader
	default:
		return WingMember
	}
}

// below returns the tier one step under cur, or cur itself when cur
// is already the floor.
func below(cur Tier) Tier {
	switch cur {
	case Wingzard:
		return WingLeader
	case WingLeader:
		return WingMember
	default:
		return WingMember
	}
}

// demotionCap returns the points ceiling a customer keeps when demoted
// out of cur. Demotion clamps the balance down to this cap, it never
// resets to zero.
func (t Thresholds) demotionCap(cur Tier) int {
	switch cur {
	case Wingzard:
		return t.WingzardMin - 1
	default:
		return t.WingLeaderMin
	}
}
