package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meridiansearch/meridian/domain/ontology"
	"github.com/meridiansearch/meridian/internal/database"
)

// OntologyStore implements ontology.Store using GORM.
type OntologyStore struct {
	db database.Database
}

// NewOntologyStore creates an OntologyStore.
func NewOntologyStore(db database.Database) OntologyStore {
	return OntologyStore{db: db}
}

// Snapshot materializes the current ontology for expansion.
func (s OntologyStore) Snapshot(ctx context.Context) (*ontology.Snapshot, error) {
	session := s.db.Session(ctx)

	var termModels []OntologyTermModel
	if err := session.Find(&termModels).Error; err != nil {
		return nil, fmt.Errorf("load ontology terms: %w", err)
	}
	var relationModels []OntologyRelationModel
	if err := session.Find(&relationModels).Error; err != nil {
		return nil, fmt.Errorf("load ontology relations: %w", err)
	}
	var aliasModels []OntologyAliasModel
	if err := session.Find(&aliasModels).Error; err != nil {
		return nil, fmt.Errorf("load ontology aliases: %w", err)
	}
	var dictModels []DictionaryEntryModel
	if err := session.Find(&dictModels).Error; err != nil {
		return nil, fmt.Errorf("load dictionary entries: %w", err)
	}

	terms := make([]ontology.Term, len(termModels))
	for i, m := range termModels {
		terms[i] = ontology.NewTerm(m.ID, m.Label, m.ParentID, m.Taxonomy)
	}
	relations := make([]ontology.Relation, len(relationModels))
	for i, m := range relationModels {
		relations[i] = ontology.NewRelation(m.FromID, m.ToID, ontology.RelationType(m.RelationType))
	}
	aliases := make([]ontology.Alias, len(aliasModels))
	for i, m := range aliasModels {
		aliases[i] = ontology.NewAlias(m.Surface, m.TermID, m.Weight)
	}
	dictionary := make([]ontology.DictionaryEntry, len(dictModels))
	for i, m := range dictModels {
		dictionary[i] = ontology.NewDictionaryEntry(m.Key, m.Expansions)
	}

	return ontology.NewSnapshot(terms, relations, aliases, dictionary), nil
}

// SaveTerm creates or updates a term.
func (s OntologyStore) SaveTerm(ctx context.Context, term ontology.Term) error {
	model := OntologyTermModel{
		ID:       term.ID(),
		Label:    term.Label(),
		ParentID: term.ParentID(),
		Taxonomy: term.Taxonomy(),
	}
	if err := s.db.Session(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("save ontology term: %w", err)
	}
	return nil
}

// DeleteTerm removes a term and its relations and aliases.
func (s OntologyStore) DeleteTerm(ctx context.Context, id string) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Delete(&OntologyRelationModel{}, "from_id = ? OR to_id = ?", id, id).Error; err != nil {
			return fmt.Errorf("delete term relations: %w", err)
		}
		if err := tx.Delete(&OntologyAliasModel{}, "term_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete term aliases: %w", err)
		}
		if err := tx.Delete(&OntologyTermModel{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete ontology term: %w", err)
		}
		return nil
	})
}

// SaveRelation creates a relation. Saving an existing edge is a no-op.
func (s OntologyStore) SaveRelation(ctx context.Context, relation ontology.Relation) error {
	model := OntologyRelationModel{
		FromID:       relation.FromID(),
		ToID:         relation.ToID(),
		RelationType: string(relation.Type()),
	}
	err := s.db.Session(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("save ontology relation: %w", err)
	}
	return nil
}

// SaveAlias creates or updates an alias.
func (s OntologyStore) SaveAlias(ctx context.Context, alias ontology.Alias) error {
	model := OntologyAliasModel{
		Surface: alias.Surface(),
		TermID:  alias.TermID(),
		Weight:  alias.Weight(),
	}
	err := s.db.Session(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "surface"}, {Name: "term_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"weight"}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("save ontology alias: %w", err)
	}
	return nil
}

// SaveDictionaryEntry creates or updates a dictionary entry.
func (s OntologyStore) SaveDictionaryEntry(ctx context.Context, entry ontology.DictionaryEntry) error {
	model := DictionaryEntryModel{
		Key:        entry.Key(),
		Expansions: StringSlice(entry.Expansions()),
	}
	if err := s.db.Session(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("save dictionary entry: %w", err)
	}
	return nil
}

// Terms lists all terms.
func (s OntologyStore) Terms(ctx context.Context) ([]ontology.Term, error) {
	var models []OntologyTermModel
	if err := s.db.Session(ctx).Order("label ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list ontology terms: %w", err)
	}
	terms := make([]ontology.Term, len(models))
	for i, m := range models {
		terms[i] = ontology.NewTerm(m.ID, m.Label, m.ParentID, m.Taxonomy)
	}
	return terms, nil
}

// DictionaryEntries lists all dictionary entries.
func (s OntologyStore) DictionaryEntries(ctx context.Context) ([]ontology.DictionaryEntry, error) {
	var models []DictionaryEntryModel
	if err := s.db.Session(ctx).Order("key ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list dictionary entries: %w", err)
	}
	entries := make([]ontology.DictionaryEntry, len(models))
	for i, m := range models {
		entries[i] = ontology.NewDictionaryEntry(m.Key, m.Expansions)
	}
	return entries, nil
}

// DeleteDictionaryEntry removes a dictionary entry.
func (s OntologyStore) DeleteDictionaryEntry(ctx context.Context, key string) error {
	if err := s.db.Session(ctx).Delete(&DictionaryEntryModel{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("delete dictionary entry: %w", err)
	}
	return nil
}

// TriggerStore implements ontology.TriggerStore using GORM.
type TriggerStore struct {
	database.Repository[ontology.Trigger, TriggerModel]
}

// NewTriggerStore creates a TriggerStore.
func NewTriggerStore(db database.Database) TriggerStore {
	return TriggerStore{
		Repository: database.NewRepository[ontology.Trigger, TriggerModel](db, TriggerMapper{}, "trigger"),
	}
}

// Active returns enabled triggers.
func (s TriggerStore) Active(ctx context.Context) ([]ontology.Trigger, error) {
	var models []TriggerModel
	if err := s.DB(ctx).Where("enabled = ?", true).Order("priority DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list active triggers: %w", err)
	}
	triggers := make([]ontology.Trigger, len(models))
	for i, m := range models {
		triggers[i] = TriggerMapper{}.ToDomain(m)
	}
	return triggers, nil
}

// All returns every trigger.
func (s TriggerStore) All(ctx context.Context) ([]ontology.Trigger, error) {
	return s.Find(ctx)
}

// Save creates or updates a trigger.
func (s TriggerStore) Save(ctx context.Context, trigger ontology.Trigger) error {
	model := TriggerMapper{}.ToModel(trigger)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("save trigger: %w", result.Error)
	}
	return nil
}

// Delete removes a trigger.
func (s TriggerStore) Delete(ctx context.Context, id string) error {
	if err := s.DB(ctx).Delete(&TriggerModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	return nil
}
