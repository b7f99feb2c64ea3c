package nostr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridiansearch/meridian/domain/nostr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		kind       int
		category   nostr.Category
		searchable bool
		indexed    bool
	}{
		{"note", nostr.KindNote, nostr.CategoryNote, true, true},
		{"long form", nostr.KindLongForm, nostr.CategoryArticle, true, true},
		{"profile", nostr.KindProfile, nostr.CategoryProfile, true, true},
		{"contacts not searchable", nostr.KindContacts, nostr.CategoryContacts, false, false},
		{"reaction below priority floor", nostr.KindReaction, nostr.CategoryNote, false, false},
		{"ephemeral", 21000, nostr.CategoryEphemeral, false, false},
		{"unknown kind", 99999, nostr.CategoryUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := nostr.Classify(tt.kind)
			assert.Equal(t, tt.category, c.Category())
			assert.Equal(t, tt.searchable, c.Searchable())
			assert.Equal(t, tt.indexed, c.ShouldIndex())
		})
	}
}

func TestClassifyPriorityOrdering(t *testing.T) {
	assert.Greater(t, nostr.Classify(nostr.KindNote).Priority(),
		nostr.Classify(nostr.KindLongForm).Priority())
	assert.Greater(t, nostr.Classify(nostr.KindLongForm).Priority(),
		nostr.Classify(nostr.KindProfile).Priority())
}

func TestSearchableKinds(t *testing.T) {
	kinds := nostr.SearchableKinds()
	assert.Contains(t, kinds, nostr.KindNote)
	assert.Contains(t, kinds, nostr.KindLongForm)
	assert.NotContains(t, kinds, nostr.KindContacts)
	assert.NotContains(t, kinds, nostr.KindReaction)
}

func TestParseKindOverrides(t *testing.T) {
	data := []byte(`kinds:
  - kind: 31234
    category: article
    searchable: true
    priority: 6
  - kind: 31235
    category: note
    searchable: false
    priority: 99
`)

	overrides, err := nostr.ParseKindOverrides(data)
	assert.NoError(t, err)
	assert.Len(t, overrides, 2)
	assert.Equal(t, nostr.CategoryArticle, overrides[31234].Category())
	assert.True(t, overrides[31234].ShouldIndex())
	// Priority is clamped to 1..10.
	assert.Equal(t, 10, overrides[31235].Priority())
	assert.False(t, overrides[31235].Searchable())
}

func TestParseKindOverridesRejectsBadInput(t *testing.T) {
	_, err := nostr.ParseKindOverrides([]byte("kinds: [not a mapping"))
	assert.Error(t, err)

	_, err = nostr.ParseKindOverrides([]byte("kinds:\n  - kind: -1\n    category: note\n"))
	assert.Error(t, err)
}

func TestRegisterKinds(t *testing.T) {
	overrides, err := nostr.ParseKindOverrides([]byte("kinds:\n  - kind: 31299\n    category: qa\n    searchable: true\n    priority: 5\n"))
	assert.NoError(t, err)

	nostr.RegisterKinds(overrides)

	c := nostr.Classify(31299)
	assert.Equal(t, nostr.CategoryQA, c.Category())
	assert.True(t, c.ShouldIndex())
	assert.Contains(t, nostr.SearchableKinds(), 31299)
}
