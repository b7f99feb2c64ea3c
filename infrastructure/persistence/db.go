// Package persistence provides database storage implementations.
package persistence

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/internal/database"
)

// AutoMigrate runs GORM auto migration for all models. The embedding
// table is excluded: its column type depends on the dialect and the
// embedder dimension, so NewEmbeddingStore creates it with raw SQL.
func AutoMigrate(db database.Database) error {
	return db.GORM().AutoMigrate(allModels()...)
}

// allModels returns every GORM model that AutoMigrate manages.
func allModels() []interface{} {
	return []interface{}{
		&DocumentModel{},
		&DocumentTagModel{},
		&ConnectorModel{},
		&ConnectorRunModel{},
		&ContactListModel{},
		&OntologyTermModel{},
		&OntologyRelationModel{},
		&OntologyAliasModel{},
		&DictionaryEntryModel{},
		&TriggerModel{},
		&EnrichmentResultModel{},
		&EntityRelationshipModel{},
		&WebhookModel{},
		&WebhookDeliveryModel{},
		&CandidateEnrichmentModel{},
		&RankLogModel{},
		&FeedbackModel{},
	}
}

// ValidateSchema verifies every GORM model field has a corresponding column
// in the database. Returns an error listing any missing columns.
func ValidateSchema(db database.Database) error {
	gdb := db.GORM()
	migrator := gdb.Migrator()

	var missing []string
	for _, model := range allModels() {
		stmt := &gorm.Statement{DB: gdb}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model schema: %w", err)
		}

		columnTypes, err := migrator.ColumnTypes(model)
		if err != nil {
			return fmt.Errorf("get column types for %s: %w", stmt.Table, err)
		}

		actual := make(map[string]bool, len(columnTypes))
		for _, ct := range columnTypes {
			actual[ct.Name()] = true
		}

		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" || field.DBName == "-" {
				continue
			}
			if !actual[field.DBName] {
				missing = append(missing, stmt.Table+"."+field.DBName)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("schema validation failed, missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
