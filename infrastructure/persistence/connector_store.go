package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/internal/database"
)

// ConnectorStore implements connector.Store using GORM.
type ConnectorStore struct {
	database.Repository[connector.Connector, ConnectorModel]
	db database.Database
}

// NewConnectorStore creates a ConnectorStore.
func NewConnectorStore(db database.Database) ConnectorStore {
	return ConnectorStore{
		Repository: database.NewRepository[connector.Connector, ConnectorModel](db, ConnectorMapper{}, "connector"),
		db:         db,
	}
}

// Save creates or updates a connector.
func (s ConnectorStore) Save(ctx context.Context, c connector.Connector) error {
	model := ConnectorMapper{}.ToModel(c)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("save connector: %w", result.Error)
	}
	return nil
}

// ByID retrieves a connector.
func (s ConnectorStore) ByID(ctx context.Context, id string) (connector.Connector, error) {
	return s.FindOne(ctx, storage.WithID(id))
}

// Delete removes a connector and its run history.
func (s ConnectorStore) Delete(ctx context.Context, id string) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Delete(&ConnectorRunModel{}, "connector_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete connector runs: %w", err)
		}
		if err := tx.Delete(&ConnectorModel{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete connector: %w", err)
		}
		return nil
	})
}

// RunStore implements connector.RunStore using GORM.
type RunStore struct {
	database.Repository[connector.Run, ConnectorRunModel]
}

// NewRunStore creates a RunStore.
func NewRunStore(db database.Database) RunStore {
	return RunStore{
		Repository: database.NewRepository[connector.Run, ConnectorRunModel](db, RunMapper{}, "connector run"),
	}
}

// Save creates or updates a run record.
func (s RunStore) Save(ctx context.Context, r connector.Run) error {
	model := RunMapper{}.ToModel(r)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("save connector run: %w", result.Error)
	}
	return nil
}

// ByID retrieves a run.
func (s RunStore) ByID(ctx context.Context, id string) (connector.Run, error) {
	return s.FindOne(ctx, storage.WithID(id))
}

// ActiveForConnector returns the in-flight run for a connector, if any.
func (s RunStore) ActiveForConnector(ctx context.Context, connectorID string) (connector.Run, bool, error) {
	run, err := s.FindOne(ctx,
		storage.WithConnectorID(connectorID),
		storage.WithStatus(string(connector.RunRunning)),
	)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return connector.Run{}, false, nil
		}
		return connector.Run{}, false, err
	}
	return run, true, nil
}

// FailAbandoned marks every run left in the running state as failed.
// Called once at startup to clean up after a crash.
func (s RunStore) FailAbandoned(ctx context.Context, reason string) (int64, error) {
	result := s.DB(ctx).Model(&ConnectorRunModel{}).
		Where("status = ?", string(connector.RunRunning)).
		Updates(map[string]any{
			"status":        string(connector.RunFailed),
			"error_message": reason,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("fail abandoned runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
