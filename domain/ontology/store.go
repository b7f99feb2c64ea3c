package ontology

import "context"

// Store provides read/write access to the ontology tables. The Search
// Engine reads them only through snapshots.
type Store interface {
	// Snapshot materializes the current ontology for expansion.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// SaveTerm creates or updates a term.
	SaveTerm(ctx context.Context, term Term) error

	// DeleteTerm removes a term and its relations and aliases.
	DeleteTerm(ctx context.Context, id string) error

	// SaveRelation creates a relation.
	SaveRelation(ctx context.Context, relation Relation) error

	// SaveAlias creates or updates an alias.
	SaveAlias(ctx context.Context, alias Alias) error

	// SaveDictionaryEntry creates or updates a dictionary entry.
	SaveDictionaryEntry(ctx context.Context, entry DictionaryEntry) error

	// Terms lists all terms.
	Terms(ctx context.Context) ([]Term, error)

	// DictionaryEntries lists all dictionary entries.
	DictionaryEntries(ctx context.Context) ([]DictionaryEntry, error)
}

// TriggerStore provides access to query-time triggers.
type TriggerStore interface {
	// Active returns enabled triggers.
	Active(ctx context.Context) ([]Trigger, error)

	// All returns every trigger.
	All(ctx context.Context) ([]Trigger, error)

	// Save creates or updates a trigger.
	Save(ctx context.Context, trigger Trigger) error

	// Delete removes a trigger.
	Delete(ctx context.Context, id string) error
}
