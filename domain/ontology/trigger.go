package ontology

import (
	"regexp"
	"sort"
	"strings"
)

// TriggerAction identifies what a trigger does to a query plan.
type TriggerAction string

// TriggerAction values.
const (
	ActionBoostDocType TriggerAction = "boost_doc_type"
	ActionInjectTerms  TriggerAction = "inject_terms"
)

// Trigger is a query-time rule: when its pattern matches the query and its
// conditions hold, its actions rewrite the query plan.
type Trigger struct {
	id       string
	pattern  string
	compiled *regexp.Regexp
	action   TriggerAction
	docType  string
	boost    float64
	terms    []string
	priority int
	enabled  bool
}

// NewTrigger creates a Trigger, compiling its pattern. An invalid pattern
// returns an error rather than a partially usable trigger.
func NewTrigger(id, pattern string, action TriggerAction, priority int) (Trigger, error) {
	compiled, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Trigger{}, err
	}
	return Trigger{
		id:       id,
		pattern:  pattern,
		compiled: compiled,
		action:   action,
		priority: priority,
		enabled:  true,
	}, nil
}

// ID returns the trigger ID.
func (t Trigger) ID() string { return t.id }

// Pattern returns the source regex.
func (t Trigger) Pattern() string { return t.pattern }

// Action returns the trigger action.
func (t Trigger) Action() TriggerAction { return t.action }

// DocType returns the boosted document type (boost_doc_type action).
func (t Trigger) DocType() string { return t.docType }

// Boost returns the score boost (boost_doc_type action).
func (t Trigger) Boost() float64 { return t.boost }

// Terms returns the injected terms (inject_terms action).
func (t Trigger) Terms() []string {
	cp := make([]string, len(t.terms))
	copy(cp, t.terms)
	return cp
}

// Priority returns the application priority (higher fires first).
func (t Trigger) Priority() int { return t.priority }

// Enabled reports whether the trigger is active.
func (t Trigger) Enabled() bool { return t.enabled }

// WithDocTypeBoost returns a copy configured to boost a document type.
func (t Trigger) WithDocTypeBoost(docType string, boost float64) Trigger {
	t.docType = docType
	t.boost = boost
	return t
}

// WithInjectedTerms returns a copy configured to inject terms.
func (t Trigger) WithInjectedTerms(terms ...string) Trigger {
	cp := make([]string, len(terms))
	copy(cp, terms)
	t.terms = cp
	return t
}

// WithEnabled returns a copy with the enabled flag set.
func (t Trigger) WithEnabled(enabled bool) Trigger {
	t.enabled = enabled
	return t
}

// Matches reports whether the trigger fires for a query.
func (t Trigger) Matches(query string) bool {
	if !t.enabled || t.compiled == nil {
		return false
	}
	return t.compiled.MatchString(strings.TrimSpace(query))
}

// ApplyTriggers rewrites a plan with every matching trigger, applied in
// priority order (descending, ties by ID for determinism).
func ApplyTriggers(plan QueryPlan, query string, triggers []Trigger) QueryPlan {
	matching := make([]Trigger, 0, len(triggers))
	for _, t := range triggers {
		if t.Matches(query) {
			matching = append(matching, t)
		}
	}

	sort.Slice(matching, func(i, j int) bool {
		if matching[i].priority != matching[j].priority {
			return matching[i].priority > matching[j].priority
		}
		return matching[i].id < matching[j].id
	})

	for _, t := range matching {
		switch t.action {
		case ActionBoostDocType:
			if t.docType != "" {
				plan = plan.WithDocTypeBoost(t.docType, t.boost)
			}
		case ActionInjectTerms:
			if len(t.terms) > 0 {
				plan = plan.WithTermInjections(t.terms...)
			}
		}
	}

	return plan
}
