package nostr

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Category groups event kinds for faceting and strategy selection.
type Category string

// Category values.
const (
	CategoryNote       Category = "note"
	CategoryArticle    Category = "article"
	CategoryDraft      Category = "draft"
	CategoryClassified Category = "classified"
	CategoryQA         Category = "qa"
	CategoryPodcast    Category = "podcast"
	CategoryBounty     Category = "bounty"
	CategoryProfile    Category = "profile"
	CategoryContacts   Category = "contacts"
	CategoryMedia      Category = "media"
	CategoryEphemeral  Category = "ephemeral"
	CategoryUnknown    Category = "unknown"
)

// Classification describes how the pipeline treats an event kind.
type Classification struct {
	category   Category
	searchable bool
	priority   int
}

// Category returns the kind's category.
func (c Classification) Category() Category { return c.category }

// Searchable reports whether events of this kind enter the index.
func (c Classification) Searchable() bool { return c.searchable }

// Priority returns the ingestion priority (1..10).
func (c Classification) Priority() int { return c.priority }

// MinIndexPriority is the lowest priority still admitted to the index.
const MinIndexPriority = 3

// ShouldIndex reports whether an event of this classification is worth
// indexing at all.
func (c Classification) ShouldIndex() bool {
	return c.searchable && c.priority >= MinIndexPriority
}

// kindRegistry is the static kind classification table.
var kindRegistry = map[int]Classification{
	KindNote:           {category: CategoryNote, searchable: true, priority: 10},
	KindLongForm:       {category: CategoryArticle, searchable: true, priority: 9},
	KindLongFormDraft:  {category: CategoryDraft, searchable: true, priority: 8},
	KindClassified:     {category: CategoryClassified, searchable: true, priority: 7},
	KindQuestion:       {category: CategoryQA, searchable: true, priority: 7},
	KindAnswer:         {category: CategoryQA, searchable: true, priority: 6},
	KindPodcastShow:    {category: CategoryPodcast, searchable: true, priority: 7},
	KindPodcastEpisode: {category: CategoryPodcast, searchable: true, priority: 6},
	KindBounty:         {category: CategoryBounty, searchable: true, priority: 6},
	KindProfile:        {category: CategoryProfile, searchable: true, priority: 5},
	KindContacts:       {category: CategoryContacts, searchable: false, priority: 4},
	KindMedia:          {category: CategoryMedia, searchable: true, priority: 4},
	KindRepost:         {category: CategoryNote, searchable: false, priority: 2},
	KindReaction:       {category: CategoryNote, searchable: false, priority: 1},
}

// Classify maps an event kind to its classification. Ephemeral kinds and
// unknown kinds are unsearchable.
func Classify(kind int) Classification {
	if c, ok := kindRegistry[kind]; ok {
		return c
	}
	if kind >= KindEphemeralLow && kind <= KindEphemeralHigh {
		return Classification{category: CategoryEphemeral, searchable: false, priority: 1}
	}
	return Classification{category: CategoryUnknown, searchable: false, priority: 1}
}

// SearchableKinds returns every kind the registry admits to the index,
// used to compile ingestion strategy filters.
func SearchableKinds() []int {
	var kinds []int
	for kind, c := range kindRegistry {
		if c.ShouldIndex() {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

type kindOverrideFile struct {
	Kinds []struct {
		Kind       int    `yaml:"kind"`
		Category   string `yaml:"category"`
		Searchable bool   `yaml:"searchable"`
		Priority   int    `yaml:"priority"`
	} `yaml:"kinds"`
}

// ParseKindOverrides parses a YAML kind registry extension. Deployments
// use it to classify custom or newer kinds without a rebuild:
//
//	kinds:
//	  - kind: 31234
//	    category: article
//	    searchable: true
//	    priority: 6
func ParseKindOverrides(data []byte) (map[int]Classification, error) {
	var file kindOverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse kind overrides: %w", err)
	}

	out := make(map[int]Classification, len(file.Kinds))
	for _, k := range file.Kinds {
		if k.Kind < 0 {
			return nil, fmt.Errorf("parse kind overrides: invalid kind %d", k.Kind)
		}
		priority := k.Priority
		if priority < 1 {
			priority = 1
		}
		if priority > 10 {
			priority = 10
		}
		category := Category(k.Category)
		if category == "" {
			category = CategoryUnknown
		}
		out[k.Kind] = Classification{
			category:   category,
			searchable: k.Searchable,
			priority:   priority,
		}
	}
	return out, nil
}

// RegisterKinds merges overrides into the kind registry. Call during
// startup, before any connector runs.
func RegisterKinds(overrides map[int]Classification) {
	for kind, c := range overrides {
		kindRegistry[kind] = c
	}
}
