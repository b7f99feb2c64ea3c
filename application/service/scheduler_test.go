package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/connector"
)

type fakeSweeper struct {
	count  int64
	err    error
	calls  int
	reason string
}

func (f *fakeSweeper) FailAbandoned(_ context.Context, reason string) (int64, error) {
	f.calls++
	f.reason = reason
	return f.count, f.err
}

func TestSchedulerStartSweepsAbandonedRuns(t *testing.T) {
	f := newManagerFixture(t)
	sweeper := &fakeSweeper{count: 2}
	s := NewScheduler(f.connectors, f.manager, sweeper, slog.Default())

	s.Start(context.Background())
	s.Stop()

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, "crash", sweeper.reason)
}

func TestSchedulerTickFiresDueConnector(t *testing.T) {
	c := webConnector(t, "docs").WithSchedule("15m")
	f := newManagerFixture(t, c)
	s := NewScheduler(f.connectors, f.manager, nil, slog.Default())

	// Never ran before: the first tick fires immediately.
	s.tick(context.Background())
	<-f.runner.started

	_, active, err := f.runs.ActiveForConnector(context.Background(), c.ID().String())
	require.NoError(t, err)
	assert.True(t, active)

	// The interval has not elapsed; the next tick must not fire again.
	s.tick(context.Background())

	f.runner.release <- nil
	f.waitForStatus(t, connector.RunCompleted)

	runs, err := f.manager.Runs(context.Background(), c.ID().String(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSchedulerSkipsManualAndInactiveConnectors(t *testing.T) {
	manual := webConnector(t, "manual")
	paused := webConnector(t, "paused").WithSchedule("15m").WithActive(false)
	f := newManagerFixture(t, manual, paused)
	s := NewScheduler(f.connectors, f.manager, nil, slog.Default())

	s.tick(context.Background())

	for _, c := range []connector.Connector{manual, paused} {
		_, active, err := f.runs.ActiveForConnector(context.Background(), c.ID().String())
		require.NoError(t, err)
		assert.False(t, active)
	}
}

func TestSchedulerSkipsInvalidScheduleExpression(t *testing.T) {
	c := webConnector(t, "docs").WithSchedule("every tuesday")
	f := newManagerFixture(t, c)
	s := NewScheduler(f.connectors, f.manager, nil, slog.Default())

	s.tick(context.Background())

	_, active, err := f.runs.ActiveForConnector(context.Background(), c.ID().String())
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSchedulerDueRespectsLastRun(t *testing.T) {
	f := newManagerFixture(t)
	s := NewScheduler(f.connectors, f.manager, nil, slog.Default())
	now := time.Now().UTC()
	interval := 15 * time.Minute

	fresh := webConnector(t, "fresh").WithLastRun(now.Add(-5*time.Minute), connector.RunCompleted)
	assert.False(t, s.due(fresh, interval, now))

	stale := webConnector(t, "stale").WithLastRun(now.Add(-20*time.Minute), connector.RunCompleted)
	assert.True(t, s.due(stale, interval, now))

	neverRan := webConnector(t, "never")
	assert.True(t, s.due(neverRan, interval, now))
}
