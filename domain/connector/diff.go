package connector

import (
	"github.com/meridiansearch/meridian/domain/document"
)

// Diff is the outcome of comparing source metadata to index metadata.
type Diff struct {
	added   []string
	updated []string
	removed []string
}

// Added returns external IDs present in the source but not the index.
func (d Diff) Added() []string {
	cp := make([]string, len(d.added))
	copy(cp, d.added)
	return cp
}

// Updated returns external IDs whose last-modified time differs.
func (d Diff) Updated() []string {
	cp := make([]string, len(d.updated))
	copy(cp, d.updated)
	return cp
}

// Removed returns external IDs present in the index but not the source.
func (d Diff) Removed() []string {
	cp := make([]string, len(d.removed))
	copy(cp, d.removed)
	return cp
}

// Fetch returns the IDs whose full content must be fetched (added plus
// updated), preserving source order.
func (d Diff) Fetch() []string {
	out := make([]string, 0, len(d.added)+len(d.updated))
	out = append(out, d.added...)
	out = append(out, d.updated...)
	return out
}

// Counters summarizes the diff as run counters.
func (d Diff) Counters() Counters {
	return NewCounters(len(d.added), len(d.updated), len(d.removed))
}

// Empty reports whether the index already matches the source.
func (d Diff) Empty() bool {
	return len(d.added) == 0 && len(d.updated) == 0 && len(d.removed) == 0
}

// ComputeDiff left-joins source metadata against index metadata: added is
// source minus index, updated is the intersection where last-modified
// differs, removed is index minus source. Order follows the source listing
// (removed follows the index listing).
func ComputeDiff(source, index []document.SourceEntry) Diff {
	indexed := make(map[string]document.SourceEntry, len(index))
	for _, e := range index {
		indexed[e.ExternalID()] = e
	}

	var d Diff
	seen := make(map[string]struct{}, len(source))
	for _, s := range source {
		if _, dup := seen[s.ExternalID()]; dup {
			continue
		}
		seen[s.ExternalID()] = struct{}{}

		existing, ok := indexed[s.ExternalID()]
		if !ok {
			d.added = append(d.added, s.ExternalID())
			continue
		}
		if !existing.LastModified().Equal(s.LastModified()) {
			d.updated = append(d.updated, s.ExternalID())
		}
	}

	for _, e := range index {
		if _, kept := seen[e.ExternalID()]; !kept {
			d.removed = append(d.removed, e.ExternalID())
		}
	}
	return d
}

// Pages splits ids into batches of at most size, used to bound IN-list
// length on batch content fetches.
func Pages(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		if len(ids) == 0 {
			return nil
		}
		return [][]string{ids}
	}
	var pages [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		pages = append(pages, ids[start:end])
	}
	return pages
}
