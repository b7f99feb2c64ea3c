package connector_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
)

func entry(id string, unix int64) document.SourceEntry {
	return document.NewSourceEntry(id, time.Unix(unix, 0))
}

func TestComputeDiff(t *testing.T) {
	source := []document.SourceEntry{
		entry("a", 100),
		entry("b", 200),
		entry("c", 300),
	}
	index := []document.SourceEntry{
		entry("b", 200),
		entry("c", 250),
		entry("d", 400),
	}

	d := connector.ComputeDiff(source, index)

	assert.Equal(t, []string{"a"}, d.Added())
	assert.Equal(t, []string{"c"}, d.Updated())
	assert.Equal(t, []string{"d"}, d.Removed())
	assert.Equal(t, []string{"a", "c"}, d.Fetch())
	assert.Equal(t, connector.NewCounters(1, 1, 1), d.Counters())
	assert.False(t, d.Empty())
}

func TestComputeDiffNoChanges(t *testing.T) {
	entries := []document.SourceEntry{entry("a", 100), entry("b", 200)}

	d := connector.ComputeDiff(entries, entries)
	assert.True(t, d.Empty())
	assert.Empty(t, d.Fetch())
}

func TestComputeDiffEmptySourceSweepsAll(t *testing.T) {
	index := []document.SourceEntry{entry("a", 100), entry("b", 200)}

	d := connector.ComputeDiff(nil, index)
	assert.Empty(t, d.Added())
	assert.Equal(t, []string{"a", "b"}, d.Removed())
}

func TestComputeDiffIgnoresDuplicateSourceRows(t *testing.T) {
	source := []document.SourceEntry{entry("a", 100), entry("a", 100)}

	d := connector.ComputeDiff(source, nil)
	assert.Equal(t, []string{"a"}, d.Added())
}

func TestPages(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	pages := connector.Pages(ids, 2)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, pages)

	assert.Nil(t, connector.Pages(nil, 2))
	assert.Equal(t, [][]string{ids}, connector.Pages(ids, 0))
}
