// Package connector defines the configured-source model shared by every
// connector kind and the contract a kind implements to sync it.
package connector

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type identifies a connector kind.
type Type string

// Connector kinds.
const (
	TypeSQL    Type = "sql"
	TypeWeb    Type = "web"
	TypeFolder Type = "folder"
	TypeNostr  Type = "nostr"
	TypeRSS    Type = "rss"
)

// ErrAlreadyRunning is returned when a run is requested while one is in
// flight for the same connector.
var ErrAlreadyRunning = errors.New("connector already running")

// ParseType validates a connector kind string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeSQL, TypeWeb, TypeFolder, TypeNostr, TypeRSS:
		return Type(s), nil
	}
	return "", errors.New("unknown connector type: " + s)
}

// Connector is a configured external source.
type Connector struct {
	id        uuid.UUID
	name      string
	kind      Type
	config    Config
	templates URLTemplates
	isActive  bool
	schedule  string
	createdAt time.Time
	updatedAt time.Time

	lastRunAt     time.Time
	lastRunStatus RunStatus
}

// New creates a Connector after validating its config.
func New(name string, kind Type, config Config, templates URLTemplates) (Connector, error) {
	if name == "" {
		return Connector{}, errors.New("connector name is required")
	}
	if config == nil {
		return Connector{}, errors.New("connector config is required")
	}
	if config.Kind() != kind {
		return Connector{}, errors.New("config does not match connector type")
	}
	if err := config.Validate(); err != nil {
		return Connector{}, err
	}
	if err := templates.Validate(); err != nil {
		return Connector{}, err
	}
	now := time.Now().UTC()
	return Connector{
		id:        uuid.New(),
		name:      name,
		kind:      kind,
		config:    config,
		templates: templates,
		isActive:  true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a Connector from persistence without validation.
func Reconstruct(
	id uuid.UUID,
	name string,
	kind Type,
	config Config,
	templates URLTemplates,
	isActive bool,
	schedule string,
	createdAt, updatedAt time.Time,
	lastRunAt time.Time,
	lastRunStatus RunStatus,
) Connector {
	return Connector{
		id:            id,
		name:          name,
		kind:          kind,
		config:        config,
		templates:     templates,
		isActive:      isActive,
		schedule:      schedule,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		lastRunAt:     lastRunAt,
		lastRunStatus: lastRunStatus,
	}
}

// ID returns the connector ID.
func (c Connector) ID() uuid.UUID { return c.id }

// Name returns the display name.
func (c Connector) Name() string { return c.name }

// Kind returns the connector kind.
func (c Connector) Kind() Type { return c.kind }

// Config returns the kind-specific configuration.
func (c Connector) Config() Config { return c.config }

// Templates returns the portal URL templates.
func (c Connector) Templates() URLTemplates { return c.templates }

// IsActive reports whether the scheduler may run this connector.
func (c Connector) IsActive() bool { return c.isActive }

// Schedule returns the schedule expression ("" = manual only).
func (c Connector) Schedule() string { return c.schedule }

// CreatedAt returns the creation time.
func (c Connector) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last modification time.
func (c Connector) UpdatedAt() time.Time { return c.updatedAt }

// LastRunAt returns when the last run started (zero = never ran).
func (c Connector) LastRunAt() time.Time { return c.lastRunAt }

// LastRunStatus returns the status of the last run.
func (c Connector) LastRunStatus() RunStatus { return c.lastRunStatus }

// WithName returns a copy with a new name.
func (c Connector) WithName(name string) Connector {
	c.name = name
	c.updatedAt = time.Now().UTC()
	return c
}

// WithConfig returns a copy with a new validated config.
func (c Connector) WithConfig(config Config) (Connector, error) {
	if config.Kind() != c.kind {
		return Connector{}, errors.New("config does not match connector type")
	}
	if err := config.Validate(); err != nil {
		return Connector{}, err
	}
	c.config = config
	c.updatedAt = time.Now().UTC()
	return c, nil
}

// WithTemplates returns a copy with new URL templates.
func (c Connector) WithTemplates(templates URLTemplates) (Connector, error) {
	if err := templates.Validate(); err != nil {
		return Connector{}, err
	}
	c.templates = templates
	c.updatedAt = time.Now().UTC()
	return c, nil
}

// WithActive returns a copy with the active flag set.
func (c Connector) WithActive(active bool) Connector {
	c.isActive = active
	c.updatedAt = time.Now().UTC()
	return c
}

// WithSchedule returns a copy with a new schedule expression.
func (c Connector) WithSchedule(schedule string) Connector {
	c.schedule = schedule
	c.updatedAt = time.Now().UTC()
	return c
}

// WithLastRun returns a copy recording the outcome of the latest run.
func (c Connector) WithLastRun(at time.Time, status RunStatus) Connector {
	c.lastRunAt = at
	c.lastRunStatus = status
	return c
}

// ProgressSink receives progress records during a run. Implementations
// append to the Run's structured log and update its counters.
type ProgressSink interface {
	// Log appends a structured message to the run log.
	Log(level, message string, fields map[string]any)

	// SetCounters replaces the run's add/update/remove counters.
	SetCounters(counters Counters)
}

// Runner is the sync engine for one connector kind.
type Runner interface {
	// Run executes one full sync, writing documents through the index
	// store and progress through the sink. It must honor ctx cancellation.
	Run(ctx context.Context, c Connector, sink ProgressSink) (Counters, error)
}
