package jobs

import (
	"context"
	"crm_advocacia_go/config"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Default schedules, in the configured timezone
const (
	DefaultCollectionSpec    = "0 10 * * *"
	DefaultDeadlineAlertSpec = "0 7 * * 1-5"
)

// Scheduler wraps a cron runner whose jobs share one cancellable context
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := cron.PrintfLogger(log.Default())
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers a named job. A run still in progress makes the next tick skip.
func (s *Scheduler) AddJob(name, spec string, job func(ctx context.Context)) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		log.Printf("[CRON] Running %s...", name)
		started := time.Now()
		job(s.ctx)
		log.Printf("[CRON] %s finished in %s", name, time.Since(started).Round(time.Millisecond))
	})
	if err != nil {
		return 0, fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	return id, nil
}

// Start is idempotent
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.cron.Start()
	log.Println("[CRON] Scheduler started")
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	log.Println("[CRON] Scheduler stopped")
}

// NextRun returns the next activation of a job, or nil before Start
func (s *Scheduler) NextRun(id cron.EntryID) *time.Time {
	entry := s.cron.Entry(id)
	if !entry.Valid() || entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

// ScheduleIntimacaoJobs registers the daily collection and the deadline alerts,
// and lets the collector report its next run
func ScheduleIntimacaoJobs(s *Scheduler, cfg *config.Config, collector *Collector, alerter *DeadlineAlerter) error {
	collectionSpec := cfg.CollectionCron
	if collectionSpec == "" {
		collectionSpec = DefaultCollectionSpec
	}
	collectionID, err := s.AddJob("intimação collection", collectionSpec, func(ctx context.Context) {
		if err := collector.CollectForAllPractitioners(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[CRON] Collection failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	collector.NextRun = func() *time.Time { return s.NextRun(collectionID) }

	if alerter == nil {
		return nil
	}
	alertSpec := cfg.DeadlineAlertCron
	if alertSpec == "" {
		alertSpec = DefaultDeadlineAlertSpec
	}
	_, err = s.AddJob("deadline alerts", alertSpec, func(ctx context.Context) {
		if _, err := alerter.SendDeadlineAlerts(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[CRON] Deadline alerts failed: %v", err)
		}
	})
	return err
}
