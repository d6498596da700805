package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidtube/kidtube/internal/database"
	"github.com/kidtube/kidtube/internal/source"
)

func newTestService(t *testing.T, limit int) *Service {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return NewService(db, limit)
}

func video(id, title, channel string) source.VideoRecord {
	return source.VideoRecord{ID: id, Title: title, Channel: channel, CategoryID: "animals"}
}

func TestAddAndRecent(t *testing.T) {
	s := newTestService(t, 0)

	require.NoError(t, s.Add(video("v1", "Baby Elephant", "zoo tv")))
	require.NoError(t, s.Add(video("v2", "Rocket Launch", "space kids")))

	entries, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "v2", entries[0].VideoID)
	assert.Equal(t, "v1", entries[1].VideoID)
	assert.Equal(t, "Baby Elephant", entries[1].Title)
	assert.WithinDuration(t, time.Now(), entries[0].WatchedAt, 5*time.Second)
}

func TestAddSkipsBackToBackDuplicate(t *testing.T) {
	s := newTestService(t, 0)

	require.NoError(t, s.Add(video("v1", "Baby Elephant", "zoo tv")))
	require.NoError(t, s.Add(video("v1", "Baby Elephant", "zoo tv")))

	entries, err := s.Recent(10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// The same video separated by another one is a legitimate rewatch.
	require.NoError(t, s.Add(video("v2", "Rocket Launch", "space kids")))
	require.NoError(t, s.Add(video("v1", "Baby Elephant", "zoo tv")))

	entries, err = s.Recent(10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestAddTrimsToLimit(t *testing.T) {
	s := newTestService(t, 5)

	for i := range 8 {
		require.NoError(t, s.Add(video(fmt.Sprintf("v%d", i), "Video", "channel")))
	}

	entries, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	// The oldest three were dropped.
	assert.Equal(t, "v7", entries[0].VideoID)
	assert.Equal(t, "v3", entries[4].VideoID)
}

func TestSearch(t *testing.T) {
	s := newTestService(t, 0)

	require.NoError(t, s.Add(video("v1", "Baby Elephant Bath", "zoo tv")))
	require.NoError(t, s.Add(video("v2", "Rocket Launch For Kids", "space kids")))
	require.NoError(t, s.Add(video("v3", "Excavator At Work", "big machines")))

	entries, err := s.Search("elephant")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v1", entries[0].VideoID)

	entries, err = s.Search("kids")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].VideoID)

	entries, err = s.Search("zzzzzz")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClear(t *testing.T) {
	s := newTestService(t, 0)

	require.NoError(t, s.Add(video("v1", "Baby Elephant", "zoo tv")))
	require.NoError(t, s.Clear())

	entries, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGetStats(t *testing.T) {
	s := newTestService(t, 0)

	require.NoError(t, s.Add(video("v1", "Baby Elephant", "zoo tv")))
	require.NoError(t, s.Add(source.VideoRecord{ID: "v2", Title: "Rocket", Channel: "space kids", CategoryID: "space"}))
	require.NoError(t, s.Add(video("v3", "Lion Cubs", "zoo tv")))

	stats, err := s.GetStats()
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalItems)
	assert.Equal(t, int64(3), stats.WatchedToday)
	assert.Equal(t, int64(2), stats.ByCategory["animals"])
	assert.Equal(t, int64(1), stats.ByCategory["space"])
}

func TestNilDatabase(t *testing.T) {
	s := NewService(nil, 0)

	assert.Error(t, s.Add(video("v1", "x", "y")))
	_, err := s.Recent(1)
	assert.Error(t, err)
	_, err = s.Search("x")
	assert.Error(t, err)
	assert.Error(t, s.Clear())
	_, err = s.GetStats()
	assert.Error(t, err)
}
