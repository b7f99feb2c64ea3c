package search

import (
	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/domain/search"
)

// applyDocumentFilters adds WHERE clauses for the structural search
// filters. The query must already join or target the documents table.
// Permission filtering is not applied here: the service layer evaluates
// the permission predicate on hydrated documents.
func applyDocumentFilters(db *gorm.DB, filters search.Filters) *gorm.DB {
	if filters.IsZero() {
		return db
	}

	if types := filters.DocumentTypes(); len(types) > 0 {
		db = db.Where("documents.document_type IN ?", types)
	}
	if sources := filters.SourceIDs(); len(sources) > 0 {
		db = db.Where("documents.source_id IN ?", sources)
	}
	if q := filters.MinQuality(); q > 0 {
		db = db.Where("documents.quality_score >= ?", q)
	}
	if since := filters.Since(); !since.IsZero() {
		db = db.Where("COALESCE(documents.last_modified, documents.created_at) >= ?", since)
	}
	if until := filters.Until(); !until.IsZero() {
		db = db.Where("COALESCE(documents.last_modified, documents.created_at) <= ?", until)
	}

	if any := filters.TagsAny(); len(any) > 0 {
		db = db.Where(
			"EXISTS (SELECT 1 FROM document_tags WHERE document_tags.document_id = documents.id AND document_tags.tag IN ?)",
			any,
		)
	}
	for _, tag := range filters.TagsAll() {
		db = db.Where(
			"EXISTS (SELECT 1 FROM document_tags WHERE document_tags.document_id = documents.id AND document_tags.tag = ?)",
			tag,
		)
	}

	return db
}
