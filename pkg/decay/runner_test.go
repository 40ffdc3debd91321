package decay

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/wingside/loyalty-engine/pkg/service"
	"github.com/wingside/loyalty-engine/pkg/tier"
)

// fakeCustomerStore is an in-memory service.CustomerStore for runner
// tests.
type fakeCustomerStore struct {
	customers   map[string]*service.Customer
	tierChanges []service.TierChange

	updateErrFor map[string]error
	updateCalls  int
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{
		customers:    make(map[string]*service.Customer),
		updateErrFor: make(map[string]error),
	}
}

func (f *fakeCustomerStore) GetCustomer(_ context.Context, customerID string) (*service.Customer, error) {
	c, ok := f.customers[customerID]
	if !ok {
		return nil, service.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCustomerStore) ListDecayCandidates(_ context.Context, cutoff time.Time) ([]service.Customer, error) {
	var out []service.Customer
	for _, c := range f.customers {
		if c.TotalPoints > 0 && !c.LastActivityAt.After(cutoff) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCustomerStore) UpdateLoyalty(_ context.Context, customerID string, fn func(c *service.Customer) error) (*service.Customer, error) {
	f.updateCalls++
	if err := f.updateErrFor[customerID]; err != nil {
		return nil, err
	}
	c, ok := f.customers[customerID]
	if !ok {
		return nil, service.ErrNotFound
	}
	working := *c
	if err := fn(&working); err != nil {
		return nil, err
	}
	f.customers[customerID] = &working
	copied := working
	return &copied, nil
}

func (f *fakeCustomerStore) RecordTierChange(_ context.Context, change service.TierChange) error {
	f.tierChanges = append(f.tierChanges, change)
	return nil
}

func runnerNow() time.Time {
	return time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
}

func daysAgo(d int) time.Time {
	return runnerNow().Add(-time.Duration(d) * 24 * time.Hour)
}

func TestRun_DemotesInactiveCustomers(t *testing.T) {
	store := newFakeCustomerStore()
	store.customers["cust-active"] = &service.Customer{
		ID: "cust-active", TotalPoints: 30000, Tier: tier.Wingzard, LastActivityAt: daysAgo(10),
	}
	store.customers["cust-stale"] = &service.Customer{
		ID: "cust-stale", TotalPoints: 35000, Tier: tier.Wingzard, LastActivityAt: daysAgo(200),
	}
	store.customers["cust-floor"] = &service.Customer{
		ID: "cust-floor", TotalPoints: 900, Tier: tier.WingMember, LastActivityAt: daysAgo(400),
	}

	runner := NewRunner(store, nil, tier.DefaultThresholds(), runnerNow)

	report, err := runner.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Evaluated != 2 {
		t.Errorf("Evaluated = %d, want 2 (active customer is not a candidate)", report.Evaluated)
	}
	if report.Downgraded != 1 {
		t.Errorf("Downgraded = %d, want 1", report.Downgraded)
	}
	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (floor tier)", report.Skipped)
	}
	if report.Failed != 0 {
		t.Errorf("Failed = %d, want 0", report.Failed)
	}
	if report.RunID == "" {
		t.Error("report must carry a run ID")
	}

	demoted := store.customers["cust-stale"]
	if demoted.Tier != tier.WingLeader || demoted.TotalPoints != 20000 {
		t.Errorf("stale customer = %q/%d, want Wing Leader/20000", demoted.Tier, demoted.TotalPoints)
	}

	untouched := store.customers["cust-floor"]
	if untouched.Tier != tier.WingMember || untouched.TotalPoints != 900 {
		t.Errorf("floor customer changed: %q/%d", untouched.Tier, untouched.TotalPoints)
	}

	if len(store.tierChanges) != 1 {
		t.Fatalf("tier changes recorded = %d, want 1", len(store.tierChanges))
	}
	change := store.tierChanges[0]
	if change.Reason != service.TierChangeDecay || change.PointsLost != 15000 {
		t.Errorf("change = reason %q lost %d, want %q / 15000", change.Reason, change.PointsLost, service.TierChangeDecay)
	}
}

func TestRun_DryRunPersistsNothing(t *testing.T) {
	store := newFakeCustomerStore()
	store.customers["cust-1"] = &service.Customer{
		ID: "cust-1", TotalPoints: 12000, Tier: tier.WingLeader, LastActivityAt: daysAgo(181),
	}

	runner := NewRunner(store, nil, tier.DefaultThresholds(), runnerNow)

	report, err := runner.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.DryRun {
		t.Error("report should be flagged as a dry run")
	}
	if report.Downgraded != 1 {
		t.Fatalf("Downgraded = %d, want 1", report.Downgraded)
	}

	record := report.Downgrades[0]
	if record.NewTier != tier.WingMember || record.NewPoints != 5001 {
		t.Errorf("dry run record = %q/%d, want Wing Member/5001", record.NewTier, record.NewPoints)
	}

	c := store.customers["cust-1"]
	if c.TotalPoints != 12000 || c.Tier != tier.WingLeader {
		t.Errorf("dry run mutated customer: %q/%d", c.Tier, c.TotalPoints)
	}
	if store.updateCalls != 0 {
		t.Errorf("dry run made %d store writes, want 0", store.updateCalls)
	}
	if len(store.tierChanges) != 0 {
		t.Errorf("dry run recorded %d tier changes, want 0", len(store.tierChanges))
	}
}

func TestRun_DryRunMatchesLiveRun(t *testing.T) {
	seed := func() *fakeCustomerStore {
		store := newFakeCustomerStore()
		store.customers["cust-1"] = &service.Customer{
			ID: "cust-1", TotalPoints: 35000, Tier: tier.Wingzard, LastActivityAt: daysAgo(200),
		}
		store.customers["cust-2"] = &service.Customer{
			ID: "cust-2", TotalPoints: 6000, Tier: tier.WingLeader, LastActivityAt: daysAgo(365),
		}
		return store
	}

	dry, err := NewRunner(seed(), nil, tier.DefaultThresholds(), runnerNow).Run(context.Background(), true)
	if err != nil {
		t.Fatalf("dry Run() error = %v", err)
	}
	live, err := NewRunner(seed(), nil, tier.DefaultThresholds(), runnerNow).Run(context.Background(), false)
	if err != nil {
		t.Fatalf("live Run() error = %v", err)
	}

	if dry.Downgraded != live.Downgraded || dry.Skipped != live.Skipped {
		t.Fatalf("dry (down=%d skip=%d) != live (down=%d skip=%d)",
			dry.Downgraded, dry.Skipped, live.Downgraded, live.Skipped)
	}
	for i := range dry.Downgrades {
		if dry.Downgrades[i] != live.Downgrades[i] {
			t.Errorf("downgrade %d differs: dry=%+v live=%+v", i, dry.Downgrades[i], live.Downgrades[i])
		}
	}
}

func TestRun_OneFailureDoesNotAbortRun(t *testing.T) {
	store := newFakeCustomerStore()
	store.customers["cust-bad"] = &service.Customer{
		ID: "cust-bad", TotalPoints: 35000, Tier: tier.Wingzard, LastActivityAt: daysAgo(200),
	}
	store.customers["cust-good"] = &service.Customer{
		ID: "cust-good", TotalPoints: 12000, Tier: tier.WingLeader, LastActivityAt: daysAgo(200),
	}
	store.updateErrFor["cust-bad"] = errors.New("row lock timeout")

	runner := NewRunner(store, nil, tier.DefaultThresholds(), runnerNow)

	report, err := runner.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run() error = %v, a per-customer failure must not abort the run", err)
	}
	if report.Failed != 1 {
		t.Errorf("Failed = %d, want 1", report.Failed)
	}
	if report.Downgraded != 1 {
		t.Errorf("Downgraded = %d, want 1 (the healthy customer)", report.Downgraded)
	}
	if got := store.customers["cust-good"].Tier; got != tier.WingMember {
		t.Errorf("healthy customer tier = %q, want Wing Member", got)
	}
}

func TestRun_ReactivatedCustomerIsSkipped(t *testing.T) {
	// The customer was a candidate at listing time but an award raced
	// the run and refreshed the activity timestamp before the row was
	// locked. The in-transaction re-evaluation must skip the demotion.
	store := newFakeCustomerStore()
	stale := &service.Customer{
		ID: "cust-1", TotalPoints: 35000, Tier: tier.Wingzard, LastActivityAt: daysAgo(200),
	}
	store.customers["cust-1"] = stale

	racing := &racingStore{fakeCustomerStore: store}
	runner := NewRunner(racing, nil, tier.DefaultThresholds(), runnerNow)

	report, err := runner.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Evaluated != 1 || report.Skipped != 1 || report.Downgraded != 0 {
		t.Errorf("report = evaluated %d skipped %d downgraded %d, want 1/1/0",
			report.Evaluated, report.Skipped, report.Downgraded)
	}
	if got := store.customers["cust-1"].Tier; got != tier.Wingzard {
		t.Errorf("reactivated customer tier = %q, want unchanged Wingzard", got)
	}
}

// racingStore refreshes the customer's activity timestamp just before
// the update transaction sees the row, simulating an award that landed
// between candidate listing and row locking.
type racingStore struct {
	*fakeCustomerStore
}

func (r *racingStore) UpdateLoyalty(ctx context.Context, customerID string, fn func(c *service.Customer) error) (*service.Customer, error) {
	if c, ok := r.customers[customerID]; ok {
		c.LastActivityAt = runnerNow().Add(-time.Hour)
	}
	return r.fakeCustomerStore.UpdateLoyalty(ctx, customerID, fn)
}

func TestRun_SecondRunCascadesOneMoreStep(t *testing.T) {
	store := newFakeCustomerStore()
	store.customers["cust-1"] = &service.Customer{
		ID: "cust-1", TotalPoints: 35000, Tier: tier.Wingzard, LastActivityAt: daysAgo(200),
	}
	runner := NewRunner(store, nil, tier.DefaultThresholds(), runnerNow)
	ctx := context.Background()

	if _, err := runner.Run(ctx, false); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	c := store.customers["cust-1"]
	if c.Tier != tier.WingLeader || c.TotalPoints != 20000 {
		t.Fatalf("after run 1: %q/%d, want Wing Leader/20000", c.Tier, c.TotalPoints)
	}

	// Still inactive on the next cadence: one more single step down.
	if _, err := runner.Run(ctx, false); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	c = store.customers["cust-1"]
	if c.Tier != tier.WingMember || c.TotalPoints != 5001 {
		t.Errorf("after run 2: %q/%d, want Wing Member/5001", c.Tier, c.TotalPoints)
	}
}

func TestRun_SavesReport(t *testing.T) {
	store := newFakeCustomerStore()
	store.customers["cust-1"] = &service.Customer{
		ID: "cust-1", TotalPoints: 35000, Tier: tier.Wingzard, LastActivityAt: daysAgo(200),
	}
	reports := &capturingReportStore{}
	runner := NewRunner(store, reports, tier.DefaultThresholds(), runnerNow)

	report, err := runner.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if reports.saved == nil {
		t.Fatal("report was not saved")
	}
	if reports.saved.RunID != report.RunID {
		t.Errorf("saved run ID %q != returned run ID %q", reports.saved.RunID, report.RunID)
	}
}

type capturingReportStore struct {
	saved *Report
}

func (c *capturingReportStore) SaveReport(_ context.Context, report *Report) error {
	c.saved = report
	return nil
}

func (c *capturingReportStore) LatestReport(_ context.Context) (*Report, error) {
	return c.saved, nil
}

func TestRun_CancelledContextStopsRun(t *testing.T) {
	store := newFakeCustomerStore()
	store.customers["cust-1"] = &service.Customer{
		ID: "cust-1", TotalPoints: 35000, Tier: tier.Wingzard, LastActivityAt: daysAgo(200),
	}
	runner := NewRunner(store, nil, tier.DefaultThresholds(), runnerNow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx, false); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
