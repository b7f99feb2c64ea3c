package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/domain/webhook"
)

// ConnectorManager owns connector CRUD and run execution: one run per
// connector at a time, cooperative Stop, persisted structured run logs,
// and webhook events on run transitions.
type ConnectorManager struct {
	connectors connector.Store
	runs       connector.RunStore
	runners    map[connector.Type]connector.Runner
	events     *WebhookSink
	logger     *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectorManager creates a ConnectorManager. A nil events sink
// disables webhook emission.
func NewConnectorManager(
	connectors connector.Store,
	runs connector.RunStore,
	runners map[connector.Type]connector.Runner,
	events *WebhookSink,
	logger *slog.Logger,
) *ConnectorManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectorManager{
		connectors: connectors,
		runs:       runs,
		runners:    runners,
		events:     events,
		logger:     logger,
		active:     map[uuid.UUID]context.CancelFunc{},
	}
}

// Create validates and persists a new connector.
func (m *ConnectorManager) Create(ctx context.Context, name string, kind connector.Type, cfg connector.Config, templates connector.URLTemplates) (connector.Connector, error) {
	c, err := connector.New(name, kind, cfg, templates)
	if err != nil {
		return connector.Connector{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if _, ok := m.runners[kind]; !ok {
		return connector.Connector{}, fmt.Errorf("%w: no runner for connector type %s", ErrInvalidInput, kind)
	}
	if err := m.connectors.Save(ctx, c); err != nil {
		return connector.Connector{}, fmt.Errorf("save connector: %w", err)
	}
	return c, nil
}

// Get retrieves one connector.
func (m *ConnectorManager) Get(ctx context.Context, id string) (connector.Connector, error) {
	c, err := m.connectors.ByID(ctx, id)
	if err != nil {
		return connector.Connector{}, fmt.Errorf("%w: connector %s", ErrNotFound, id)
	}
	return c, nil
}

// List retrieves all connectors.
func (m *ConnectorManager) List(ctx context.Context) ([]connector.Connector, error) {
	return m.connectors.Find(ctx, storage.WithOrderAsc("created_at"))
}

// Update persists a modified connector.
func (m *ConnectorManager) Update(ctx context.Context, c connector.Connector) error {
	if err := m.connectors.Save(ctx, c); err != nil {
		return fmt.Errorf("save connector: %w", err)
	}
	return nil
}

// Delete removes a connector after stopping any active run.
func (m *ConnectorManager) Delete(ctx context.Context, id string) error {
	c, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	_ = m.Stop(ctx, id)
	if err := m.connectors.Delete(ctx, c.ID().String()); err != nil {
		return fmt.Errorf("delete connector: %w", err)
	}
	return nil
}

// Trigger starts a run for the connector. A run already in flight is
// rejected with connector.ErrAlreadyRunning.
func (m *ConnectorManager) Trigger(ctx context.Context, id string) (connector.Run, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return connector.Run{}, err
	}
	runner, ok := m.runners[c.Kind()]
	if !ok {
		return connector.Run{}, fmt.Errorf("%w: no runner for connector type %s", ErrInvalidInput, c.Kind())
	}

	m.mu.Lock()
	if _, running := m.active[c.ID()]; running {
		m.mu.Unlock()
		return connector.Run{}, connector.ErrAlreadyRunning
	}
	if _, inFlight, err := m.runs.ActiveForConnector(ctx, c.ID().String()); err == nil && inFlight {
		m.mu.Unlock()
		return connector.Run{}, connector.ErrAlreadyRunning
	}

	run := connector.NewRun(c.ID())
	if err := m.runs.Save(ctx, run); err != nil {
		m.mu.Unlock()
		return connector.Run{}, fmt.Errorf("save run: %w", err)
	}

	// Runs outlive the triggering request; they are cancelled through
	// Stop, not by the caller disconnecting.
	runCtx, cancel := context.WithCancel(context.Background())
	m.active[c.ID()] = cancel
	m.mu.Unlock()

	m.emit(webhook.EventConnectorRunStarted, runPayload(c, run))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.execute(runCtx, c, runner, run)
	}()

	return run, nil
}

// Stop cancels the connector's active run, if any.
func (m *ConnectorManager) Stop(_ context.Context, id string) error {
	connectorID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	m.mu.Lock()
	cancel, ok := m.active[connectorID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no active run for connector %s", ErrNotFound, id)
	}
	cancel()
	return nil
}

// Status returns the connector's active run, or its most recent one.
func (m *ConnectorManager) Status(ctx context.Context, id string) (connector.Run, error) {
	if run, ok, err := m.runs.ActiveForConnector(ctx, id); err == nil && ok {
		return run, nil
	}
	runs, err := m.runs.Find(ctx,
		storage.WithConnectorID(id),
		storage.WithOrderDesc("started_at"),
		storage.WithLimit(1),
	)
	if err != nil {
		return connector.Run{}, fmt.Errorf("run history: %w", err)
	}
	if len(runs) == 0 {
		return connector.Run{}, fmt.Errorf("%w: no runs for connector %s", ErrNotFound, id)
	}
	return runs[0], nil
}

// Runs returns the connector's run history, newest first.
func (m *ConnectorManager) Runs(ctx context.Context, id string, limit int) ([]connector.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return m.runs.Find(ctx,
		storage.WithConnectorID(id),
		storage.WithOrderDesc("started_at"),
		storage.WithLimit(limit),
	)
}

// Close waits for in-flight runs to finish after their contexts are
// cancelled.
func (m *ConnectorManager) Close() {
	m.mu.Lock()
	for _, cancel := range m.active {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// execute drives one run to a terminal state.
func (m *ConnectorManager) execute(ctx context.Context, c connector.Connector, runner connector.Runner, run connector.Run) {
	defer func() {
		m.mu.Lock()
		delete(m.active, c.ID())
		m.mu.Unlock()
	}()

	sink := &runSink{runs: m.runs, run: run}
	counters, err := runner.Run(ctx, c, sink)

	final := sink.snapshot()
	switch {
	case err == nil:
		final = final.Complete(counters)
	case errors.Is(err, context.Canceled):
		final = final.WithCounters(counters).Stop()
	default:
		final = final.WithCounters(counters).Fail(err)
		m.logger.Error("connector run failed",
			slog.String("connector", c.Name()),
			slog.String("error", err.Error()),
		)
	}

	if err := m.runs.Save(context.Background(), final); err != nil {
		m.logger.Error("persist run failed", slog.String("run_id", final.ID().String()), slog.String("error", err.Error()))
	}
	updated := c.WithLastRun(final.StartedAt(), final.Status())
	if err := m.connectors.Save(context.Background(), updated); err != nil {
		m.logger.Error("persist connector failed", slog.String("connector_id", c.ID().String()), slog.String("error", err.Error()))
	}

	switch final.Status() {
	case connector.RunCompleted:
		m.emit(webhook.EventConnectorRunDone, runPayload(c, final))
	case connector.RunFailed:
		m.emit(webhook.EventConnectorRunFailed, runPayload(c, final))
	}
}

func (m *ConnectorManager) emit(event string, payload map[string]any) {
	if m.events == nil {
		return
	}
	m.events.Emit(context.Background(), event, payload)
}

func runPayload(c connector.Connector, run connector.Run) map[string]any {
	payload := map[string]any{
		"connector_id":   c.ID().String(),
		"connector_name": c.Name(),
		"run_id":         run.ID().String(),
		"status":         string(run.Status()),
		"added":          run.Counters().Added(),
		"updated":        run.Counters().Updated(),
		"removed":        run.Counters().Removed(),
	}
	if msg := run.ErrorMessage(); msg != "" {
		payload["error"] = msg
	}
	return payload
}

// runSink persists progress into the run record as it arrives so run logs
// survive a crash mid-sync.
type runSink struct {
	runs connector.RunStore

	mu  sync.Mutex
	run connector.Run
}

// Log appends a structured entry to the run log.
func (s *runSink) Log(level, message string, fields map[string]any) {
	s.mu.Lock()
	s.run = s.run.WithLogEntry(connector.NewLogEntry(time.Now().UTC(), level, message, fields))
	run := s.run
	s.mu.Unlock()
	_ = s.runs.Save(context.Background(), run)
}

// SetCounters replaces the run counters.
func (s *runSink) SetCounters(counters connector.Counters) {
	s.mu.Lock()
	s.run = s.run.WithCounters(counters)
	run := s.run
	s.mu.Unlock()
	_ = s.runs.Save(context.Background(), run)
}

func (s *runSink) snapshot() connector.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}
