package decay

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wingside/loyalty-engine/pkg/metrics"
	"github.com/wingside/loyalty-engine/pkg/service"
	"github.com/wingside/loyalty-engine/pkg/tier"
)

// DowngradeRecord is one customer's demotion inside a run report.
type DowngradeRecord struct {
	CustomerID   string    `json:"customer_id"`
	OldTier      tier.Tier `json:"old_tier"`
	NewTier      tier.Tier `json:"new_tier"`
	OldPoints    int       `json:"old_points"`
	NewPoints    int       `json:"new_points"`
	PointsLost   int       `json:"points_lost"`
	DaysInactive int       `json:"days_inactive"`
}

// Report summarizes one decay batch run. The caller persists the
// downgrade records for audit and uses them to drive notifications.
type Report struct {
	RunID      string            `json:"run_id"`
	DryRun     bool              `json:"dry_run"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Evaluated  int               `json:"evaluated"`
	Downgraded int               `json:"downgraded"`
	Skipped    int               `json:"skipped"`
	Failed     int               `json:"failed"`
	Downgrades []DowngradeRecord `json:"downgrades"`
}

// ReportStore persists run reports for later inspection.
type ReportStore interface {
	SaveReport(ctx context.Context, report *Report) error
	LatestReport(ctx context.Context) (*Report, error)
}

// Runner executes the inactivity decay batch: list candidates,
// evaluate each with the pure tier engine, persist one-step
// demotions. Customers are independent; one customer's failure never
// aborts the run.
type Runner struct {
	customers  service.CustomerStore
	reports    ReportStore
	thresholds tier.Thresholds
	now        func() time.Time

	// mu serializes runs so overlapping ticks or a manual trigger
	// racing the scheduler cannot double-apply within a run window.
	mu sync.Mutex
}

// NewRunner creates a decay runner. reports may be nil to skip report
// persistence; now may be nil to use time.Now.
func NewRunner(customers service.CustomerStore, reports ReportStore, thresholds tier.Thresholds, now func() time.Time) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{
		customers:  customers,
		reports:    reports,
		thresholds: thresholds,
		now:        now,
	}
}

// Run executes one decay batch. With dryRun set, it computes the
// would-be downgrades through the identical evaluation path but
// persists nothing. The candidate set is iterated exactly once, so a
// customer cannot be demoted twice within a single invocation.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.now()
	report := &Report{
		RunID:     uuid.NewString(),
		DryRun:    dryRun,
		StartedAt: started,
	}

	mode := "live"
	if dryRun {
		mode = "dry_run"
	}
	metrics.DecayRunsTotal.WithLabelValues(mode).Inc()

	cutoff := started.Add(-r.thresholds.InactivityWindow)
	candidates, err := r.customers.ListDecayCandidates(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	logrus.Infof("decay run %s started: %d candidates, dryRun=%v", report.RunID, len(candidates), dryRun)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report.Evaluated++

		record, err := r.processCustomer(ctx, candidate, started, dryRun)
		if err != nil {
			report.Failed++
			metrics.DecayCustomerFailures.Inc()
			logrus.Errorf("decay failed for customer %s: %v", candidate.ID, err)
			continue
		}
		if record == nil {
			// Floor tier, zero balance, or reactivated since listing.
			report.Skipped++
			continue
		}

		report.Downgraded++
		report.Downgrades = append(report.Downgrades, *record)
		if !dryRun {
			metrics.TierChanges.WithLabelValues(string(record.OldTier), string(record.NewTier), service.TierChangeDecay).Inc()
		}
	}

	report.FinishedAt = r.now()
	metrics.DecayRunDuration.Observe(report.FinishedAt.Sub(started).Seconds())

	if r.reports != nil {
		if err := r.reports.SaveReport(ctx, report); err != nil {
			logrus.Errorf("failed to save decay report %s: %v", report.RunID, err)
		}
	}

	logrus.Infof("decay run %s finished: evaluated=%d downgraded=%d skipped=%d failed=%d",
		report.RunID, report.Evaluated, report.Downgraded, report.Skipped, report.Failed)
	return report, nil
}

// processCustomer evaluates and, outside dry runs, persists a single
// customer's demotion. The evaluation is redone against the freshly
// locked row inside the transaction, so an award that raced the
// candidate listing wins and the demotion is skipped.
func (r *Runner) processCustomer(ctx context.Context, candidate service.Customer, now time.Time, dryRun bool) (*DowngradeRecord, error) {
	if dryRun {
		d := r.thresholds.EvaluateDecay(candidate.TotalPoints, candidate.LastActivityAt, now)
		if d == nil {
			return nil, nil
		}
		return downgradeRecord(candidate.ID, d), nil
	}

	var applied *tier.Downgrade
	persist := func() error {
		applied = nil
		_, err := r.customers.UpdateLoyalty(ctx, candidate.ID, func(c *service.Customer) error {
			d := r.thresholds.EvaluateDecay(c.TotalPoints, c.LastActivityAt, now)
			if d == nil {
				return nil
			}
			c.TotalPoints = d.NewPoints
			c.Tier = d.NewTier
			applied = d
			return nil
		})
		return err
	}

	// Only the write is retried; the computation is deterministic and
	// simply recomputed against the re-read row on each attempt.
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(persist, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	if applied == nil {
		return nil, nil
	}

	record := downgradeRecord(candidate.ID, applied)
	change := service.TierChange{
		ID:         uuid.NewString(),
		CustomerID: candidate.ID,
		OldTier:    applied.OldTier,
		NewTier:    applied.NewTier,
		Reason:     service.TierChangeDecay,
		PointsLost: applied.PointsLost,
		OccurredAt: now,
	}
	if err := r.customers.RecordTierChange(ctx, change); err != nil {
		// The demotion committed; the audit row is best-effort.
		logrus.Errorf("failed to record decay tier change for customer %s: %v", candidate.ID, err)
	}

	logrus.Infof("customer %s demoted: %s -> %s, points %d -> %d (inactive %d days)",
		candidate.ID, record.OldTier, record.NewTier,
		record.OldPoints, record.NewPoints, record.DaysInactive)
	return record, nil
}

func downgradeRecord(customerID string, d *tier.Downgrade) *DowngradeRecord {
	return &DowngradeRecord{
		CustomerID:   customerID,
		OldTier:      d.OldTier,
		NewTier:      d.NewTier,
		OldPoints:    d.OldPoints,
		NewPoints:    d.NewPoints,
		PointsLost:   d.PointsLost,
		DaysInactive: d.DaysInactive,
	}
}
