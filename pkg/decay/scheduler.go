package decay

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler triggers the decay runner on a fixed interval. The batch
// normally runs daily; the runner's own lock keeps a manual trigger
// from overlapping a scheduled one.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	dryRun   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler around a runner. dryRun propagates
// to every scheduled run (used to stage the batch in new deployments
// before letting it mutate balances).
func NewScheduler(runner *Runner, interval time.Duration, dryRun bool) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		dryRun:   dryRun,
	}
}

// Start launches the schedule loop. The first run happens after one
// full interval, not at startup, so a crash-looping deployment does
// not hammer the customer table.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		logrus.Infof("decay scheduler started: interval=%v dryRun=%v", s.interval, s.dryRun)
		for {
			select {
			case <-ctx.Done():
				logrus.Info("decay scheduler stopped")
				return
			case <-ticker.C:
				if _, err := s.runner.Run(ctx, s.dryRun); err != nil {
					logrus.Errorf("scheduled decay run failed: %v", err)
				}
			}
		}
	}()
}

// Stop cancels the schedule loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
