package enrichment

import (
	"sort"
)

// Relationship links an entity to every document that mentions it. The
// document set is sorted and deduplicated; documentCount is always the set
// size.
type Relationship struct {
	entityType  EntityType
	normalized  string
	documentIDs []string
}

// NewRelationship creates a Relationship for an entity.
func NewRelationship(entityType EntityType, normalized string, documentIDs []string) Relationship {
	r := Relationship{entityType: entityType, normalized: Normalize(normalized)}
	return r.Union(documentIDs...)
}

// Type returns the entity type.
func (r Relationship) Type() EntityType { return r.entityType }

// Normalized returns the canonical entity value.
func (r Relationship) Normalized() string { return r.normalized }

// DocumentIDs returns the sorted set of mentioning documents.
func (r Relationship) DocumentIDs() []string {
	cp := make([]string, len(r.documentIDs))
	copy(cp, r.documentIDs)
	return cp
}

// DocumentCount returns the number of mentioning documents.
func (r Relationship) DocumentCount() int { return len(r.documentIDs) }

// Union returns a copy with the given documents merged into the set.
func (r Relationship) Union(documentIDs ...string) Relationship {
	set := make(map[string]struct{}, len(r.documentIDs)+len(documentIDs))
	for _, id := range r.documentIDs {
		set[id] = struct{}{}
	}
	for _, id := range documentIDs {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	merged := make([]string, 0, len(set))
	for id := range set {
		merged = append(merged, id)
	}
	sort.Strings(merged)
	r.documentIDs = merged
	return r
}

// Remove returns a copy with a document dropped from the set.
func (r Relationship) Remove(documentID string) Relationship {
	kept := make([]string, 0, len(r.documentIDs))
	for _, id := range r.documentIDs {
		if id != documentID {
			kept = append(kept, id)
		}
	}
	r.documentIDs = kept
	return r
}
