// Package search provides search domain types for hybrid document retrieval.
package search

// Mode represents the type of search to perform.
type Mode string

// Mode values.
const (
	ModeHybrid Mode = "hybrid"
	ModeVector Mode = "vector"
	ModeText   Mode = "text"
)

// ParseMode maps a request string to a Mode, defaulting to hybrid.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeVector:
		return ModeVector
	case ModeText:
		return ModeText
	default:
		return ModeHybrid
	}
}

// UserContext carries the caller identity attached to a search request.
type UserContext struct {
	userGroups []string
	userPubkey string
}

// NewUserContext creates a UserContext.
func NewUserContext(userGroups []string, userPubkey string) UserContext {
	groups := make([]string, len(userGroups))
	copy(groups, userGroups)
	return UserContext{userGroups: groups, userPubkey: userPubkey}
}

// UserGroups returns the permission group tokens held by the caller.
func (u UserContext) UserGroups() []string {
	groups := make([]string, len(u.userGroups))
	copy(groups, u.userGroups)
	return groups
}

// UserPubkey returns the caller's Nostr pubkey, if any.
func (u UserContext) UserPubkey() string { return u.userPubkey }

// Request represents a search request.
type Request struct {
	query   string
	mode    Mode
	limit   int
	offset  int
	filters Filters
	user    UserContext
	expand  bool
	explain bool
}

// NewRequest creates a Request with expansion enabled by default.
func NewRequest(query string, mode Mode, limit int) Request {
	if limit <= 0 {
		limit = 10
	}
	return Request{
		query:  query,
		mode:   mode,
		limit:  limit,
		expand: true,
	}
}

// Query returns the query text.
func (r Request) Query() string { return r.query }

// Mode returns the search mode.
func (r Request) Mode() Mode { return r.mode }

// Limit returns the maximum number of results.
func (r Request) Limit() int { return r.limit }

// Offset returns the pagination offset.
func (r Request) Offset() int { return r.offset }

// Filters returns the search filters.
func (r Request) Filters() Filters { return r.filters }

// User returns the caller context.
func (r Request) User() UserContext { return r.user }

// Expand reports whether ontology query expansion is requested.
func (r Request) Expand() bool { return r.expand }

// Explain reports whether per-document score breakdowns are requested.
func (r Request) Explain() bool { return r.explain }

// WithOffset returns a copy with the pagination offset set.
func (r Request) WithOffset(n int) Request {
	if n >= 0 {
		r.offset = n
	}
	return r
}

// WithFilters returns a copy with filters set.
func (r Request) WithFilters(f Filters) Request {
	r.filters = f
	return r
}

// WithUser returns a copy with the caller context set.
func (r Request) WithUser(u UserContext) Request {
	r.user = u
	return r
}

// WithExpand returns a copy with query expansion toggled.
func (r Request) WithExpand(expand bool) Request {
	r.expand = expand
	return r
}

// WithExplain returns a copy with score explanation toggled.
func (r Request) WithExplain(explain bool) Request {
	r.explain = explain
	return r
}

// CandidateDepth returns how many candidates each index should produce
// before fusion: max(limit*4, 50), offset included so later pages stay
// reachable.
func (r Request) CandidateDepth() int {
	depth := (r.limit + r.offset) * 4
	if depth < 50 {
		depth = 50
	}
	return depth
}
