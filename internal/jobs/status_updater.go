// Package jobs runs the background work of the booking service.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ms-booking/internal/logger"
	"ms-booking/internal/utils"
)

// Advancer moves fulfilled orders along the paid -> active -> completed path.
type Advancer interface {
	AdvanceStatuses(ctx context.Context, now time.Time) (int, error)
}

// StatusUpdater periodically advances order statuses against the clock.
type StatusUpdater struct {
	Advancer Advancer
	Clock    utils.Clock
	Timeout  time.Duration
	Log      *logger.Logger

	mu    sync.Mutex
	cron  *cron.Cron
}

func NewStatusUpdater(a Advancer, clock utils.Clock, log *logger.Logger) *StatusUpdater {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &StatusUpdater{Advancer: a, Clock: clock, Timeout: time.Minute, Log: log}
}

// Run performs one pass and returns how many orders changed status.
func (u *StatusUpdater) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, u.Timeout)
	defer cancel()

	start := time.Now()
	n, err := u.Advancer.AdvanceStatuses(ctx, u.Clock.Now())
	if err != nil {
		u.Log.Error("CRON", fmt.Sprintf("status pass failed after %d orders: %v", n, err))
		return n, err
	}
	if n > 0 {
		u.Log.Info("CRON", fmt.Sprintf("advanced %d orders in %s", n, time.Since(start)))
	}
	return n, nil
}

// Start schedules Run on a cron spec such as "@every 1m" or "*/5 * * * *".
// Overlapping runs are skipped.
func (u *StatusUpdater) Start(spec string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cron != nil {
		return fmt.Errorf("status updater already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { u.Run(context.Background()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	u.cron = c
	u.Log.Info("CRON", fmt.Sprintf("status updater scheduled: %s", spec))
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (u *StatusUpdater) Stop() {
	u.mu.Lock()
	c := u.cron
	u.cron = nil
	u.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	u.Log.Info("CRON", "status updater stopped")
}
