package connector

import (
	"context"

	"github.com/meridiansearch/meridian/domain/storage"
)

// Store defines persistence operations for connectors.
type Store interface {
	// Save creates or updates a connector.
	Save(ctx context.Context, c Connector) error

	// ByID retrieves a connector.
	ByID(ctx context.Context, id string) (Connector, error)

	// Find retrieves connectors matching the given options.
	Find(ctx context.Context, options ...storage.Option) ([]Connector, error)

	// Delete removes a connector and its run history.
	Delete(ctx context.Context, id string) error
}

// RunStore defines persistence operations for run history.
type RunStore interface {
	// Save creates or updates a run record.
	Save(ctx context.Context, r Run) error

	// ByID retrieves a run.
	ByID(ctx context.Context, id string) (Run, error)

	// Find retrieves runs matching the given options, typically scoped by
	// connector and ordered by start time.
	Find(ctx context.Context, options ...storage.Option) ([]Run, error)

	// ActiveForConnector returns the in-flight run for a connector, if any.
	// The second result reports whether one exists.
	ActiveForConnector(ctx context.Context, connectorID string) (Run, bool, error)
}
