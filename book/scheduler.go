package book

import (
	"context"
	"fmt"
	"sync"
	"time"

	"driftbook/logger"
)

// minCycleTimeout bounds how aggressively a short refresh period can cut off
// an in-flight cycle.
const minCycleTimeout = 250 * time.Millisecond

// metricsEvery is the number of ticks between builder metric reports.
const metricsEvery = 30

// Scheduler drives the Builder on a fixed interval. Cycles run on a single
// goroutine, so at most one cycle is ever in flight per market; ticks that
// fire while a cycle is still running are coalesced by the ticker. A failed
// cycle is recorded on the store and the next tick retries.
type Scheduler struct {
	builder  *Builder
	store    *Store
	interval time.Duration
	log      *logger.Log

	ctx     context.Context
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewScheduler(interval time.Duration, builder *Builder, store *Store) *Scheduler {
	return &Scheduler{
		builder:  builder,
		store:    store,
		interval: interval,
		log:      logger.GetLogger(),
	}
}

// Start launches the refresh loop. The first cycle runs immediately rather
// than waiting a full period, so a snapshot is available as soon as
// possible after process start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.ctx = ctx
	s.stop = make(chan struct{})
	s.mu.Unlock()

	s.log.WithComponent("refresh_scheduler").WithFields(logger.Fields{
		"interval_ms": s.interval.Milliseconds(),
	}).Info("starting refresh scheduler")

	s.wg.Add(1)
	go s.run()
	return nil
}

// Stop halts the loop and waits for it to exit. It does not depend on the
// Start context being cancelled; an in-flight cycle runs to completion under
// its own deadline.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.WithComponent("refresh_scheduler").Info("refresh scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	log := s.log.WithComponent("refresh_scheduler")

	s.cycle()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-s.ctx.Done():
			log.Info("refresh loop stopped due to context cancellation")
			return
		case <-s.stop:
			log.Info("refresh loop stopped")
			return
		case <-ticker.C:
			s.cycle()
			ticks++
			if ticks%metricsEvery == 0 {
				s.builder.ReportMetrics()
			}
		}
	}
}

// cycle runs one builder refresh under a deadline derived from the refresh
// period so a hung remote call cannot freeze the snapshot forever. A timeout
// is an ordinary cycle failure.
func (s *Scheduler) cycle() {
	timeout := s.interval
	if timeout < minCycleTimeout {
		timeout = minCycleTimeout
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := s.builder.Refresh(ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.store.Fail(err)
		logger.IncrementCycleFailure()
		s.log.WithComponent("refresh_scheduler").WithError(err).Warn("refresh cycle failed")
		return
	}

	if elapsed := time.Since(start); elapsed > s.interval {
		s.log.WithComponent("refresh_scheduler").WithFields(logger.Fields{
			"duration_ms": elapsed.Milliseconds(),
			"interval_ms": s.interval.Milliseconds(),
		}).Warn("refresh cycle took longer than interval")
	}
}
