package connector

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// RunStatus values.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
)

// Counters are the incremental-sync result counters of a run.
type Counters struct {
	added   int
	updated int
	removed int
}

// NewCounters creates Counters.
func NewCounters(added, updated, removed int) Counters {
	return Counters{added: added, updated: updated, removed: removed}
}

// Added returns the number of documents created.
func (c Counters) Added() int { return c.added }

// Updated returns the number of documents updated.
func (c Counters) Updated() int { return c.updated }

// Removed returns the number of documents swept.
func (c Counters) Removed() int { return c.removed }

// Add returns the element-wise sum of two counters.
func (c Counters) Add(other Counters) Counters {
	return Counters{
		added:   c.added + other.added,
		updated: c.updated + other.updated,
		removed: c.removed + other.removed,
	}
}

// LogEntry is one record in a run's append-only structured log.
type LogEntry struct {
	at      time.Time
	level   string
	message string
	fields  map[string]any
}

// NewLogEntry creates a LogEntry.
func NewLogEntry(at time.Time, level, message string, fields map[string]any) LogEntry {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return LogEntry{at: at, level: level, message: message, fields: cp}
}

// At returns when the entry was logged.
func (l LogEntry) At() time.Time { return l.at }

// Level returns the log level.
func (l LogEntry) Level() string { return l.level }

// Message returns the log message.
func (l LogEntry) Message() string { return l.message }

// Fields returns the structured fields of the entry.
func (l LogEntry) Fields() map[string]any {
	cp := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		cp[k] = v
	}
	return cp
}

// Run is one end-to-end execution of a connector.
type Run struct {
	id          uuid.UUID
	connectorID uuid.UUID
	status      RunStatus
	startedAt   time.Time
	completedAt time.Time
	counters    Counters
	log         []LogEntry
	errMessage  string
}

// NewRun starts a run record in the running state.
func NewRun(connectorID uuid.UUID) Run {
	return Run{
		id:          uuid.New(),
		connectorID: connectorID,
		status:      RunRunning,
		startedAt:   time.Now().UTC(),
	}
}

// ReconstructRun rebuilds a Run from persistence.
func ReconstructRun(
	id, connectorID uuid.UUID,
	status RunStatus,
	startedAt, completedAt time.Time,
	counters Counters,
	log []LogEntry,
	errMessage string,
) Run {
	cp := make([]LogEntry, len(log))
	copy(cp, log)
	return Run{
		id:          id,
		connectorID: connectorID,
		status:      status,
		startedAt:   startedAt,
		completedAt: completedAt,
		counters:    counters,
		log:         cp,
		errMessage:  errMessage,
	}
}

// ID returns the run ID.
func (r Run) ID() uuid.UUID { return r.id }

// ConnectorID returns the owning connector.
func (r Run) ConnectorID() uuid.UUID { return r.connectorID }

// Status returns the run status.
func (r Run) Status() RunStatus { return r.status }

// StartedAt returns when the run started.
func (r Run) StartedAt() time.Time { return r.startedAt }

// CompletedAt returns when the run finished (zero while running).
func (r Run) CompletedAt() time.Time { return r.completedAt }

// Counters returns the run counters.
func (r Run) Counters() Counters { return r.counters }

// ErrorMessage returns the failure reason ("" unless failed).
func (r Run) ErrorMessage() string { return r.errMessage }

// Log returns the structured run log.
func (r Run) Log() []LogEntry {
	cp := make([]LogEntry, len(r.log))
	copy(cp, r.log)
	return cp
}

// Running reports whether the run is still in flight.
func (r Run) Running() bool { return r.status == RunRunning }

// WithCounters returns a copy with new counters.
func (r Run) WithCounters(counters Counters) Run {
	r.counters = counters
	return r
}

// WithLogEntry returns a copy with one more log entry appended.
func (r Run) WithLogEntry(entry LogEntry) Run {
	log := make([]LogEntry, len(r.log), len(r.log)+1)
	copy(log, r.log)
	r.log = append(log, entry)
	return r
}

// Complete returns a copy transitioned to the completed state.
func (r Run) Complete(counters Counters) Run {
	r.status = RunCompleted
	r.counters = counters
	r.completedAt = time.Now().UTC()
	return r
}

// Fail returns a copy transitioned to the failed state.
func (r Run) Fail(err error) Run {
	r.status = RunFailed
	if err != nil {
		r.errMessage = err.Error()
	}
	r.completedAt = time.Now().UTC()
	return r
}

// Stop returns a copy transitioned to the stopped state after cooperative
// cancellation.
func (r Run) Stop() Run {
	r.status = RunStopped
	r.completedAt = time.Now().UTC()
	return r
}
