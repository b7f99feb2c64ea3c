package search

import "time"

// Filters narrows search candidates before ranking. The zero value matches
// everything public plus anything the caller's groups allow.
type Filters struct {
	documentTypes []string
	sourceIDs     []string
	tagsAny       []string
	tagsAll       []string
	minQuality    float64
	since         time.Time
	until         time.Time
	userGroups    []string
}

// FiltersOption configures Filters.
type FiltersOption func(*Filters)

// NewFilters creates Filters from options.
func NewFilters(options ...FiltersOption) Filters {
	f := Filters{}
	for _, opt := range options {
		opt(&f)
	}
	return f
}

// WithDocumentTypes filters by document type (IN semantics).
func WithDocumentTypes(types ...string) FiltersOption {
	return func(f *Filters) { f.documentTypes = types }
}

// WithSources filters by source connector IDs.
func WithSources(ids ...string) FiltersOption {
	return func(f *Filters) { f.sourceIDs = ids }
}

// WithTagsAny keeps documents carrying at least one of the tags.
func WithTagsAny(tags ...string) FiltersOption {
	return func(f *Filters) { f.tagsAny = tags }
}

// WithTagsAll keeps documents carrying every tag.
func WithTagsAll(tags ...string) FiltersOption {
	return func(f *Filters) { f.tagsAll = tags }
}

// WithMinQuality keeps documents at or above the quality threshold.
func WithMinQuality(q float64) FiltersOption {
	return func(f *Filters) { f.minQuality = q }
}

// WithDateRange keeps documents whose lastModified falls in [since, until].
// A zero bound is open.
func WithDateRange(since, until time.Time) FiltersOption {
	return func(f *Filters) {
		f.since = since
		f.until = until
	}
}

// WithUserGroups sets the caller's permission groups. Documents are eligible
// when their permission set is empty or fully held by the caller.
func WithUserGroups(groups ...string) FiltersOption {
	return func(f *Filters) { f.userGroups = groups }
}

// DocumentTypes returns the document type filter.
func (f Filters) DocumentTypes() []string { return copyStrings(f.documentTypes) }

// SourceIDs returns the source filter.
func (f Filters) SourceIDs() []string { return copyStrings(f.sourceIDs) }

// TagsAny returns the any-of tag filter.
func (f Filters) TagsAny() []string { return copyStrings(f.tagsAny) }

// TagsAll returns the all-of tag filter.
func (f Filters) TagsAll() []string { return copyStrings(f.tagsAll) }

// MinQuality returns the quality threshold (0 = none).
func (f Filters) MinQuality() float64 { return f.minQuality }

// Since returns the lower date bound (zero = open).
func (f Filters) Since() time.Time { return f.since }

// Until returns the upper date bound (zero = open).
func (f Filters) Until() time.Time { return f.until }

// UserGroups returns the caller's permission groups.
func (f Filters) UserGroups() []string { return copyStrings(f.userGroups) }

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return len(f.documentTypes) == 0 &&
		len(f.sourceIDs) == 0 &&
		len(f.tagsAny) == 0 &&
		len(f.tagsAll) == 0 &&
		f.minQuality == 0 &&
		f.since.IsZero() &&
		f.until.IsZero() &&
		len(f.userGroups) == 0
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
