package nostr_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/nostr"
)

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"id": "abc123",
		"pubkey": "pk1",
		"kind": 1,
		"created_at": 1700000000,
		"content": "hello nostr",
		"tags": [["t", "golang"], ["p", "pk2"]],
		"sig": "sig1"
	}`)

	e, err := nostr.ParseEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, "abc123", e.ID())
	assert.Equal(t, "pk1", e.Pubkey())
	assert.Equal(t, nostr.KindNote, e.Kind())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), e.CreatedAt())
	assert.Equal(t, "hello nostr", e.Content())
	assert.Equal(t, "golang", e.TagValue("t"))
	assert.Equal(t, []string{"pk2"}, e.TagValues("p"))
}

func TestParseEventMissingID(t *testing.T) {
	_, err := nostr.ParseEvent([]byte(`{"kind": 1, "content": "x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestEventAddress(t *testing.T) {
	e := nostr.NewEvent("id1", "pk1", nostr.KindLongForm, time.Now(), "body",
		[][]string{{"d", "my-article"}}, "sig")

	assert.True(t, e.IsAddressable())
	assert.Equal(t, "30023:pk1:my-article", e.Address())

	plain := nostr.NewEvent("id2", "pk1", nostr.KindNote, time.Now(), "note", nil, "sig")
	assert.False(t, plain.IsAddressable())
	assert.Empty(t, plain.Address())
}

func TestEventMarshalRoundTrip(t *testing.T) {
	e := nostr.NewEvent("id1", "pk1", nostr.KindNote, time.Unix(1700000000, 0).UTC(),
		"content", [][]string{{"t", "tag"}}, "sig")

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	back, err := nostr.ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, e.ID(), back.ID())
	assert.Equal(t, e.CreatedAt(), back.CreatedAt())
	assert.Equal(t, e.Tags(), back.Tags())
}

func TestFilterMarshalUsesTagKeyConvention(t *testing.T) {
	f := nostr.NewFilter(
		nostr.WithKinds(1, 30023),
		nostr.WithAuthors("pk1"),
		nostr.WithTag("t", "golang"),
		nostr.WithSince(time.Unix(1700000000, 0)),
		nostr.WithFilterLimit(50),
	)

	raw, err := json.Marshal(f)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Contains(t, m, "#t")
	assert.Contains(t, m, "kinds")
	assert.EqualValues(t, 1700000000, m["since"])
	assert.EqualValues(t, 50, m["limit"])
}

func TestFilterMatches(t *testing.T) {
	e := nostr.NewEvent("id1", "pk1", nostr.KindNote, time.Unix(1700000000, 0),
		"content", [][]string{{"t", "golang"}}, "sig")

	assert.True(t, nostr.NewFilter(nostr.WithKinds(1)).Matches(e))
	assert.True(t, nostr.NewFilter(nostr.WithTag("t", "golang", "rust")).Matches(e))
	assert.False(t, nostr.NewFilter(nostr.WithKinds(30023)).Matches(e))
	assert.False(t, nostr.NewFilter(nostr.WithAuthors("pk2")).Matches(e))
	assert.False(t, nostr.NewFilter(nostr.WithSince(time.Unix(1800000000, 0))).Matches(e))
}

func TestFilterLimitCapped(t *testing.T) {
	f := nostr.NewFilter(nostr.WithFilterLimit(500))
	assert.Equal(t, 100, f.WithLimitCapped(100).Limit())
	assert.Equal(t, 500, f.WithLimitCapped(0).Limit())

	unlimited := nostr.NewFilter()
	assert.Equal(t, 100, unlimited.WithLimitCapped(100).Limit())
}
