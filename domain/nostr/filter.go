package nostr

import (
	"encoding/json"
	"time"
)

// Filter is a NIP-01 subscription filter. Tag filters use the "#x" JSON
// key convention.
type Filter struct {
	ids     []string
	authors []string
	kinds   []int
	tags    map[string][]string
	since   time.Time
	until   time.Time
	limit   int
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// NewFilter creates a Filter from options.
func NewFilter(options ...FilterOption) Filter {
	f := Filter{}
	for _, opt := range options {
		opt(&f)
	}
	return f
}

// WithKinds filters by event kinds.
func WithKinds(kinds ...int) FilterOption {
	return func(f *Filter) { f.kinds = kinds }
}

// WithAuthors filters by author pubkeys.
func WithAuthors(authors ...string) FilterOption {
	return func(f *Filter) { f.authors = authors }
}

// WithIDs filters by event IDs.
func WithIDs(ids ...string) FilterOption {
	return func(f *Filter) { f.ids = ids }
}

// WithTag filters by a tag name and values.
func WithTag(name string, values ...string) FilterOption {
	return func(f *Filter) {
		if f.tags == nil {
			f.tags = map[string][]string{}
		}
		f.tags[name] = values
	}
}

// WithSince keeps events created at or after t.
func WithSince(t time.Time) FilterOption {
	return func(f *Filter) { f.since = t }
}

// WithUntil keeps events created at or before t.
func WithUntil(t time.Time) FilterOption {
	return func(f *Filter) { f.until = t }
}

// WithFilterLimit caps the number of returned events.
func WithFilterLimit(n int) FilterOption {
	return func(f *Filter) { f.limit = n }
}

// Kinds returns the kind filter.
func (f Filter) Kinds() []int {
	cp := make([]int, len(f.kinds))
	copy(cp, f.kinds)
	return cp
}

// Authors returns the author filter.
func (f Filter) Authors() []string {
	cp := make([]string, len(f.authors))
	copy(cp, f.authors)
	return cp
}

// Limit returns the event cap (0 = relay default).
func (f Filter) Limit() int { return f.limit }

// Since returns the lower time bound.
func (f Filter) Since() time.Time { return f.since }

// Until returns the upper time bound.
func (f Filter) Until() time.Time { return f.until }

// WithLimitCapped returns a copy whose limit does not exceed max.
func (f Filter) WithLimitCapped(max int) Filter {
	if max > 0 && (f.limit == 0 || f.limit > max) {
		f.limit = max
	}
	return f
}

// MarshalJSON encodes the filter in NIP-01 wire format.
func (f Filter) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	if len(f.ids) > 0 {
		m["ids"] = f.ids
	}
	if len(f.authors) > 0 {
		m["authors"] = f.authors
	}
	if len(f.kinds) > 0 {
		m["kinds"] = f.kinds
	}
	for name, values := range f.tags {
		m["#"+name] = values
	}
	if !f.since.IsZero() {
		m["since"] = f.since.Unix()
	}
	if !f.until.IsZero() {
		m["until"] = f.until.Unix()
	}
	if f.limit > 0 {
		m["limit"] = f.limit
	}
	return json.Marshal(m)
}

// Matches reports whether an event satisfies the filter. Used for
// client-side rechecking on live subscriptions.
func (f Filter) Matches(e Event) bool {
	if len(f.kinds) > 0 && !containsInt(f.kinds, e.Kind()) {
		return false
	}
	if len(f.authors) > 0 && !containsString(f.authors, e.Pubkey()) {
		return false
	}
	if len(f.ids) > 0 && !containsString(f.ids, e.ID()) {
		return false
	}
	if !f.since.IsZero() && e.CreatedAt().Before(f.since) {
		return false
	}
	if !f.until.IsZero() && e.CreatedAt().After(f.until) {
		return false
	}
	for name, values := range f.tags {
		matched := false
		for _, v := range e.TagValues(name) {
			if containsString(values, v) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
