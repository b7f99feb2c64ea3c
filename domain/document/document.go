// Package document provides the universal indexed unit and its store contract.
package document

import (
	"time"

	"github.com/google/uuid"
)

// Type is the document taxonomy tag (e.g. "nostr:note", "docs:api", "manual").
type Type string

// Well-known document types.
const (
	TypeManual       Type = "manual"
	TypeNostrNote    Type = "nostr:note"
	TypeNostrArticle Type = "nostr:article"
	TypeNostrProfile Type = "nostr:profile"
	TypeNostrShow    Type = "nostr:show"
	TypeNostrEpisode Type = "nostr:episode"
	TypeWebPage      Type = "web:page"
	TypeFile         Type = "folder:file"
	TypeSQLRow       Type = "sql:row"
	TypeRSSEpisode   Type = "rss:episode"
)

// Document is the unit of retrieval. Identity is an opaque UUID; within a
// source the (sourceID, externalID) pair is unique.
type Document struct {
	id               string
	sourceID         string
	externalID       string
	title            string
	content          string
	url              string
	documentType     Type
	attributes       Attributes
	permissionGroups []string
	qualityScore     float64
	createdAt        time.Time
	updatedAt        time.Time
	indexedAt        time.Time
	lastModified     time.Time
}

// New creates a Document with a fresh UUID.
func New(sourceID, externalID, title, content string, docType Type) Document {
	now := time.Now().UTC()
	return Document{
		id:           uuid.NewString(),
		sourceID:     sourceID,
		externalID:   externalID,
		title:        title,
		content:      content,
		documentType: docType,
		attributes:   NewAttributes(nil),
		qualityScore: 0.5,
		createdAt:    now,
		updatedAt:    now,
	}
}

// Reconstruct rebuilds a Document from persisted state.
func Reconstruct(
	id, sourceID, externalID, title, content, url string,
	docType Type,
	attributes Attributes,
	permissionGroups []string,
	qualityScore float64,
	createdAt, updatedAt, indexedAt, lastModified time.Time,
) Document {
	groups := make([]string, len(permissionGroups))
	copy(groups, permissionGroups)
	return Document{
		id:               id,
		sourceID:         sourceID,
		externalID:       externalID,
		title:            title,
		content:          content,
		url:              url,
		documentType:     docType,
		attributes:       attributes,
		permissionGroups: groups,
		qualityScore:     clamp01(qualityScore),
		createdAt:        createdAt,
		updatedAt:        updatedAt,
		indexedAt:        indexedAt,
		lastModified:     lastModified,
	}
}

// ID returns the document UUID.
func (d Document) ID() string { return d.id }

// SourceID returns the owning connector ID (empty for manual documents).
func (d Document) SourceID() string { return d.sourceID }

// ExternalID returns the per-source identity.
func (d Document) ExternalID() string { return d.externalID }

// Title returns the document title.
func (d Document) Title() string { return d.title }

// Content returns the full text.
func (d Document) Content() string { return d.content }

// URL returns the optional deep link.
func (d Document) URL() string { return d.url }

// DocumentType returns the taxonomy tag.
func (d Document) DocumentType() Type { return d.documentType }

// Attributes returns the open metadata bag.
func (d Document) Attributes() Attributes { return d.attributes }

// PermissionGroups returns the opaque permission tokens (empty = public).
func (d Document) PermissionGroups() []string {
	groups := make([]string, len(d.permissionGroups))
	copy(groups, d.permissionGroups)
	return groups
}

// QualityScore returns the quality score in [0,1].
func (d Document) QualityScore() float64 { return d.qualityScore }

// CreatedAt returns the creation time.
func (d Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last write time.
func (d Document) UpdatedAt() time.Time { return d.updatedAt }

// IndexedAt returns the index materialization time.
func (d Document) IndexedAt() time.Time { return d.indexedAt }

// LastModified returns the source-reported modification time.
func (d Document) LastModified() time.Time { return d.lastModified }

// IsPublic reports whether the document carries no permission restriction.
func (d Document) IsPublic() bool { return len(d.permissionGroups) == 0 }

// VisibleTo reports whether a user holding the given group tokens may see
// the document. Public documents are visible to everyone, including users
// with no groups at all.
func (d Document) VisibleTo(userGroups []string) bool {
	if d.IsPublic() {
		return true
	}
	held := make(map[string]struct{}, len(userGroups))
	for _, g := range userGroups {
		held[g] = struct{}{}
	}
	for _, g := range d.permissionGroups {
		if _, ok := held[g]; !ok {
			return false
		}
	}
	return true
}

// WithURL returns a copy with the deep link set.
func (d Document) WithURL(url string) Document {
	d.url = url
	return d
}

// WithAttributes returns a copy with the attribute bag replaced.
func (d Document) WithAttributes(attrs Attributes) Document {
	d.attributes = attrs
	return d
}

// WithPermissionGroups returns a copy with the permission tokens replaced.
func (d Document) WithPermissionGroups(groups []string) Document {
	cp := make([]string, len(groups))
	copy(cp, groups)
	d.permissionGroups = cp
	return d
}

// WithQualityScore returns a copy with the quality score clamped to [0,1].
func (d Document) WithQualityScore(score float64) Document {
	d.qualityScore = clamp01(score)
	return d
}

// WithLastModified returns a copy with the source-reported modification time.
func (d Document) WithLastModified(t time.Time) Document {
	d.lastModified = t
	return d
}

// WithContent returns a copy with title and content replaced and updatedAt
// bumped. Used by re-sync.
func (d Document) WithContent(title, content string) Document {
	d.title = title
	d.content = content
	d.updatedAt = time.Now().UTC()
	return d
}

// MarkIndexed returns a copy stamped with the index write time.
func (d Document) MarkIndexed(at time.Time) Document {
	d.indexedAt = at
	return d
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
