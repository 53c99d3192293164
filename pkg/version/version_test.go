package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/objectcore/pkg/errs"
)

func TestResolveLatestPicksNewest(t *testing.T) {
	entries := []Entry{
		{VersionID: "v1", ModTime: 100},
		{VersionID: "v2", ModTime: 300},
		{VersionID: "v3", ModTime: 200},
	}
	got, err := ResolveLatest(entries)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestResolveLatestDeleteMarkerIsNotFound(t *testing.T) {
	entries := []Entry{
		{VersionID: "v1", ModTime: 100},
		{VersionID: "v2", ModTime: 300, DeleteMarker: true},
	}
	_, err := ResolveLatest(entries)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.CodeOf(err))
}

func TestResolveLatestEmpty(t *testing.T) {
	_, err := ResolveLatest(nil)
	require.Error(t, err)
}

func TestSortEntriesTiebreakOnVersionID(t *testing.T) {
	entries := []Entry{
		{VersionID: "aaa", ModTime: 100},
		{VersionID: "bbb", ModTime: 100},
	}
	SortEntries(entries)
	assert.Equal(t, "bbb", entries[0].VersionID)
}

func TestNewProducesDistinctIDs(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
