// Package enrichment defines the NLP artifacts derived from documents and
// the stores that persist them.
package enrichment

import (
	"errors"
	"strings"
)

// EntityType classifies an extracted entity.
type EntityType string

// Entity types produced by the rule-based extractor.
const (
	EntityPerson   EntityType = "PERSON"
	EntityOrg      EntityType = "ORG"
	EntityLocation EntityType = "LOCATION"
	EntityDate     EntityType = "DATE"
	EntityMoney    EntityType = "MONEY"
	EntityEmail    EntityType = "EMAIL"
	EntityPhone    EntityType = "PHONE"
	EntityURL      EntityType = "URL"
)

// Entity is one extracted entity with its source span.
type Entity struct {
	entityType EntityType
	value      string
	normalized string
	start      int
	end        int
}

// NewEntity creates an Entity. The normalized form defaults to the
// case-folded trimmed value.
func NewEntity(entityType EntityType, value string, start, end int) (Entity, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Entity{}, errors.New("entity value is required")
	}
	if end < start {
		return Entity{}, errors.New("entity span end before start")
	}
	return Entity{
		entityType: entityType,
		value:      value,
		normalized: Normalize(value),
		start:      start,
		end:        end,
	}, nil
}

// Type returns the entity type.
func (e Entity) Type() EntityType { return e.entityType }

// Value returns the surface form as it appeared in the text.
func (e Entity) Value() string { return e.value }

// Normalized returns the canonical form used for relationship grouping.
func (e Entity) Normalized() string { return e.normalized }

// Start returns the rune offset where the entity begins.
func (e Entity) Start() int { return e.start }

// End returns the rune offset just past the entity.
func (e Entity) End() int { return e.end }

// WithNormalized returns a copy with an explicit canonical form.
func (e Entity) WithNormalized(normalized string) Entity {
	e.normalized = Normalize(normalized)
	return e
}

// Normalize canonicalizes an entity value: trim, case-fold, collapse
// internal whitespace. Idempotent.
func Normalize(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
