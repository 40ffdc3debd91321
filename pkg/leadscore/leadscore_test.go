package leadscore

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestScore(t *testing.T) {
	w := DefaultWeights()
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	twoDaysAgo := timePtr(now.Add(-2 * 24 * time.Hour))
	twentyDaysAgo := timePtr(now.Add(-20 * 24 * time.Hour))
	ninetyDaysAgo := timePtr(now.Add(-90 * 24 * time.Hour))

	tests := []struct {
		name     string
		factors  Factors
		expected int
	}{
		{
			name: "maximal lead clamps at 100",
			// 20+20+20+20+10+6+5 = 101, clamped
			factors: Factors{
				Source:          SourceReferral,
				Budget:          BudgetHigh,
				Timeline:        TimelineImmediate,
				InterestLevel:   InterestHigh,
				EstimatedValue:  150000,
				ActivitiesCount: 3,
				LastContactedAt: twoDaysAgo,
			},
			expected: 100,
		},
		{
			name:     "empty lead gets source and interest defaults",
			factors:  Factors{},
			expected: 8, // source other 5 + interest low 3
		},
		{
			name: "converted lead is forced to zero",
			factors: Factors{
				Source:          SourceReferral,
				Budget:          BudgetHigh,
				Timeline:        TimelineImmediate,
				InterestLevel:   InterestHigh,
				EstimatedValue:  150000,
				ActivitiesCount: 3,
				LastContactedAt: twoDaysAgo,
				Converted:       true,
			},
			expected: 0,
		},
		{
			name: "mid-range lead",
			// partner 15 + medium 12 + 3-6mo 10 + medium 10 + 20k 5 + 2*2 + warm 3
			factors: Factors{
				Source:          SourcePartner,
				Budget:          BudgetMedium,
				Timeline:        Timeline3To6,
				InterestLevel:   InterestMedium,
				EstimatedValue:  20000,
				ActivitiesCount: 2,
				LastContactedAt: twentyDaysAgo,
			},
			expected: 59,
		},
		{
			name: "unknown enum values score as lowest bucket",
			// source 5 + budget 0 + timeline 0 + interest 3
			factors: Factors{
				Source:        "billboard",
				Budget:        "enormous",
				Timeline:      "someday",
				InterestLevel: "lukewarm",
			},
			expected: 8,
		},
		{
			name: "negative numerics clamp to zero contribution",
			factors: Factors{
				Source:          SourceWebsite,
				EstimatedValue:  -5000,
				ActivitiesCount: -3,
			},
			expected: 11, // website 8 + interest default 3
		},
		{
			name: "stale contact earns no recency bonus",
			factors: Factors{
				Source:          SourceWebsite,
				LastContactedAt: ninetyDaysAgo,
			},
			expected: 11,
		},
		{
			name: "engagement caps at five activities",
			factors: Factors{
				Source:          SourceOther,
				ActivitiesCount: 50,
			},
			expected: 18, // other 5 + interest default 3 + engagement cap 10
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.Score(tt.factors, now)
			if got != tt.expected {
				t.Errorf("Score() = %d, expected %d", got, tt.expected)
			}
			if got < 0 || got > 100 {
				t.Errorf("Score() = %d, out of [0, 100]", got)
			}
		})
	}
}

func TestScore_Deterministic(t *testing.T) {
	w := DefaultWeights()
	now := time.Now()
	f := Factors{
		Source:          SourceEvent,
		Budget:          BudgetLow,
		Timeline:        TimelineNotSure,
		InterestLevel:   InterestHigh,
		EstimatedValue:  7500,
		ActivitiesCount: 4,
		LastContactedAt: timePtr(now.Add(-10 * 24 * time.Hour)),
	}

	first := w.Score(f, now)
	for i := 0; i < 10; i++ {
		if got := w.Score(f, now); got != first {
			t.Fatalf("Score() = %d on repeat call, expected %d", got, first)
		}
	}
}

func TestScore_EngagementMonotonic(t *testing.T) {
	// More activity never lowers the score, and the marginal
	// contribution is zero once the cap is reached.
	w := DefaultWeights()
	now := time.Now()

	prev := -1
	for count := 0; count <= 8; count++ {
		f := Factors{Source: SourceWebsite, ActivitiesCount: count}
		got := w.Score(f, now)
		if got < prev {
			t.Fatalf("score dropped from %d to %d at activities_count=%d", prev, got, count)
		}
		prev = got
	}

	atCap := w.Score(Factors{Source: SourceWebsite, ActivitiesCount: 5}, now)
	beyondCap := w.Score(Factors{Source: SourceWebsite, ActivitiesCount: 6}, now)
	if atCap != beyondCap {
		t.Errorf("engagement beyond cap changed score: %d vs %d", atCap, beyondCap)
	}
}

func TestQuality(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		score    int
		expected string
	}{
		{score: 100, expected: QualityHot},
		{score: 80, expected: QualityHot},
		{score: 79, expected: QualityWarm},
		{score: 60, expected: QualityWarm},
		{score: 59, expected: QualityCold},
		{score: 40, expected: QualityCold},
		{score: 39, expected: QualityUnqualified},
		{score: 0, expected: QualityUnqualified},
	}

	for _, tt := range tests {
		if got := w.Quality(tt.score); got != tt.expected {
			t.Errorf("Quality(%d) = %q, expected %q", tt.score, got, tt.expected)
		}
	}
}

func TestBreakdown_MatchesScore(t *testing.T) {
	w := DefaultWeights()
	now := time.Now()

	leads := []Factors{
		{},
		{Source: SourceReferral, Budget: BudgetHigh, Timeline: TimelineImmediate,
			InterestLevel: InterestHigh, EstimatedValue: 150000, ActivitiesCount: 3,
			LastContactedAt: timePtr(now.Add(-2 * 24 * time.Hour))},
		{Source: SourceSocial, Budget: BudgetLow, EstimatedValue: 4999, ActivitiesCount: 1},
	}

	for _, f := range leads {
		total := 0
		for _, c := range w.Breakdown(f, now) {
			total += c.Points
		}
		if total > 100 {
			total = 100
		}
		if got := w.Score(f, now); got != total {
			t.Errorf("Breakdown sum %d disagrees with Score %d for %+v", total, got, f)
		}
	}
}

func TestBreakdown_ConvertedLead(t *testing.T) {
	w := DefaultWeights()
	got := w.Breakdown(Factors{Source: SourceReferral, Converted: true}, time.Now())

	if len(got) != 1 {
		t.Fatalf("Breakdown() returned %d entries for converted lead, expected 1", len(got))
	}
	if got[0].Factor != "converted" || got[0].Points != 0 {
		t.Errorf("Breakdown() = %+v, expected zeroing converted entry", got[0])
	}
}

func TestValueTiers(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		value    float64
		expected int
	}{
		{value: 0, expected: 0},
		{value: -100, expected: 0},
		{value: 1, expected: 1},
		{value: 4999, expected: 1},
		{value: 5000, expected: 3},
		{value: 19999, expected: 3},
		{value: 20000, expected: 5},
		{value: 50000, expected: 7},
		{value: 99999, expected: 7},
		{value: 100000, expected: 10},
		{value: 2000000, expected: 10},
	}

	for _, tt := range tests {
		if got := w.valuePoints(tt.value); got != tt.expected {
			t.Errorf("valuePoints(%.0f) = %d, expected %d", tt.value, got, tt.expected)
		}
	}
}
