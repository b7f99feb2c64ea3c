package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridiansearch/meridian/domain/connector"
)

// schedulerTick is the schedule evaluation interval.
const schedulerTick = time.Second

// RunSweeper marks runs left in the running state by a previous process
// as failed.
type RunSweeper interface {
	FailAbandoned(ctx context.Context, reason string) (int64, error)
}

// Scheduler fires connector runs on their schedule expressions. A schedule
// is a Go duration string ("15m", "1h"); an empty schedule means manual
// runs only.
type Scheduler struct {
	connectors connector.Store
	manager    *ConnectorManager
	sweeper    RunSweeper
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	nextFire map[uuid.UUID]time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(connectors connector.Store, manager *ConnectorManager, sweeper RunSweeper, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		connectors: connectors,
		manager:    manager,
		sweeper:    sweeper,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		nextFire:   map[uuid.UUID]time.Time{},
	}
}

// Start sweeps runs abandoned by a crash and begins the tick loop in a
// background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	if s.sweeper != nil {
		swept, err := s.sweeper.FailAbandoned(ctx, "crash")
		if err != nil {
			s.logger.Error("abandoned run sweep failed", slog.String("error", err.Error()))
		} else if swept > 0 {
			s.logger.Warn("abandoned runs marked failed", slog.Int64("count", swept))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Go(func() {
		s.run(ctx)
	})
	s.logger.Info("scheduler started")
}

// Stop halts the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(schedulerTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires every due schedule.
func (s *Scheduler) tick(ctx context.Context) {
	connectors, err := s.connectors.Find(ctx)
	if err != nil {
		s.logger.Error("schedule scan failed", slog.String("error", err.Error()))
		return
	}

	now := s.now()
	for _, c := range connectors {
		if !c.IsActive() || c.Schedule() == "" {
			continue
		}
		interval, err := time.ParseDuration(c.Schedule())
		if err != nil || interval <= 0 {
			s.logger.Warn("invalid schedule expression",
				slog.String("connector", c.Name()),
				slog.String("schedule", c.Schedule()),
			)
			continue
		}
		if !s.due(c, interval, now) {
			continue
		}

		s.mu.Lock()
		s.nextFire[c.ID()] = now.Add(interval)
		s.mu.Unlock()

		if _, err := s.manager.Trigger(ctx, c.ID().String()); err != nil {
			if errors.Is(err, connector.ErrAlreadyRunning) {
				continue
			}
			s.logger.Error("scheduled run failed to start",
				slog.String("connector", c.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.Info("scheduled run started",
			slog.String("connector", c.Name()),
			slog.String("schedule", c.Schedule()),
		)
	}
}

// due reports whether a connector's schedule has fired. A connector that
// never ran is due immediately; otherwise the in-memory fire table keyed
// off the last run start decides.
func (s *Scheduler) due(c connector.Connector, interval time.Duration, now time.Time) bool {
	s.mu.Lock()
	next, tracked := s.nextFire[c.ID()]
	s.mu.Unlock()
	if tracked {
		return !now.Before(next)
	}
	if c.LastRunAt().IsZero() {
		return true
	}
	return !now.Before(c.LastRunAt().Add(interval))
}
