package parental

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidtube/kidtube/internal/config"
	"github.com/kidtube/kidtube/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	s, err := NewStore(db, config.ParentalConfig{
		TimeLimitMinutes: 30,
		BedtimeHour:      21,
		HistoryLimit:     100,
	})
	require.NoError(t, err)
	return s
}

func TestPIN(t *testing.T) {
	s := newTestStore(t)

	t.Run("unset pin verifies anything", func(t *testing.T) {
		assert.False(t, s.HasPIN())
		assert.True(t, s.VerifyPIN("0000"))
	})

	t.Run("set and verify", func(t *testing.T) {
		require.NoError(t, s.SetPIN("1234"))
		assert.True(t, s.HasPIN())
		assert.True(t, s.VerifyPIN("1234"))
		assert.False(t, s.VerifyPIN("4321"))
	})

	t.Run("rejects bad pins", func(t *testing.T) {
		assert.Error(t, s.SetPIN("12"))
		assert.Error(t, s.SetPIN("123456789"))
		assert.Error(t, s.SetPIN("12ab"))
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, s.RemovePIN())
		assert.False(t, s.HasPIN())
		assert.True(t, s.VerifyPIN("anything"))
	})
}

func TestCategorySelection(t *testing.T) {
	s := newTestStore(t)

	// Defaults to every known category when nothing is stored.
	assert.Len(t, s.EnabledCategories(), 13)

	require.NoError(t, s.SetEnabledCategories([]string{"animals", "space"}))
	assert.Equal(t, []string{"animals", "space"}, s.EnabledCategories())

	assert.Error(t, s.SetEnabledCategories(nil))
	assert.Error(t, s.SetEnabledCategories([]string{"notacategory"}))
}

func TestLanguageSelection(t *testing.T) {
	s := newTestStore(t)

	assert.NotEmpty(t, s.EnabledLanguages())

	require.NoError(t, s.SetEnabledLanguages([]string{"english"}))
	assert.Equal(t, []string{"english"}, s.EnabledLanguages())

	assert.Error(t, s.SetEnabledLanguages(nil))
}

func TestBlockedChannels(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.BlockChannel("  Spooky Channel  "))

	// Normalized on the way in, matched case-insensitively on the way out.
	assert.True(t, s.IsChannelBlocked("spooky channel"))
	assert.True(t, s.IsChannelBlocked("SPOOKY CHANNEL"))
	assert.False(t, s.IsChannelBlocked("friendly channel"))

	names, err := s.BlockedChannels()
	require.NoError(t, err)
	assert.Equal(t, []string{"spooky channel"}, names)

	// Blocking twice is harmless.
	require.NoError(t, s.BlockChannel("spooky channel"))
	names, err = s.BlockedChannels()
	require.NoError(t, err)
	assert.Len(t, names, 1)

	require.NoError(t, s.UnblockChannel("Spooky Channel"))
	assert.False(t, s.IsChannelBlocked("spooky channel"))

	assert.Error(t, s.BlockChannel("   "))
}

func TestBlockedChannelsSurviveReopen(t *testing.T) {
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	s1, err := NewStore(db, config.ParentalConfig{})
	require.NoError(t, err)
	require.NoError(t, s1.BlockChannel("spooky channel"))

	s2, err := NewStore(db, config.ParentalConfig{})
	require.NoError(t, err)
	assert.True(t, s2.IsChannelBlocked("spooky channel"))
}

func TestBedtime(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, 21, s.BedtimeHour())

	evening := time.Date(2026, 3, 1, 21, 30, 0, 0, time.Local)
	afternoon := time.Date(2026, 3, 1, 15, 0, 0, 0, time.Local)
	assert.True(t, s.IsBedtime(evening))
	assert.False(t, s.IsBedtime(afternoon))

	require.NoError(t, s.SetBedtimeHour(19))
	assert.Equal(t, 19, s.BedtimeHour())
	assert.True(t, s.IsBedtime(time.Date(2026, 3, 1, 19, 0, 0, 0, time.Local)))

	assert.Error(t, s.SetBedtimeHour(24))
	assert.Error(t, s.SetBedtimeHour(-1))

	t.Run("disabling bedtime lifts the window", func(t *testing.T) {
		assert.True(t, s.BedtimeEnabled())
		require.NoError(t, s.SetBedtimeEnabled(false))
		assert.False(t, s.IsBedtime(evening))
		require.NoError(t, s.SetBedtimeEnabled(true))
		assert.True(t, s.IsBedtime(evening))
	})
}

func TestTimeLimit(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 15, 0, 0, 0, time.Local)

	assert.Equal(t, 30*time.Minute, s.TimeLimit())

	reached, err := s.TimeLimitReached(now)
	require.NoError(t, err)
	assert.False(t, reached)

	require.NoError(t, s.AddWatchTime(20*time.Minute, now))
	watched, err := s.WatchedToday(now)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, watched)

	require.NoError(t, s.AddWatchTime(10*time.Minute, now))
	reached, err = s.TimeLimitReached(now)
	require.NoError(t, err)
	assert.True(t, reached)

	t.Run("bucket resets next day", func(t *testing.T) {
		tomorrow := now.AddDate(0, 0, 1)
		watched, err := s.WatchedToday(tomorrow)
		require.NoError(t, err)
		assert.Zero(t, watched)

		reached, err := s.TimeLimitReached(tomorrow)
		require.NoError(t, err)
		assert.False(t, reached)
	})

	t.Run("zero limit disables enforcement", func(t *testing.T) {
		require.NoError(t, s.SetTimeLimitMinutes(0))
		reached, err := s.TimeLimitReached(now)
		require.NoError(t, err)
		assert.False(t, reached)
	})
}

func TestResetAll(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SetPIN("1234"))
	require.NoError(t, s.BlockChannel("spooky channel"))
	require.NoError(t, s.SetEnabledCategories([]string{"animals"}))

	require.NoError(t, s.ResetAll())

	assert.False(t, s.HasPIN())
	assert.False(t, s.IsChannelBlocked("spooky channel"))
	assert.Len(t, s.EnabledCategories(), 13)
}

func TestTimerCountdown(t *testing.T) {
	expired := make(chan struct{})
	timer := NewTimer(1500*time.Millisecond, nil, func() { close(expired) })

	timer.Start()
	select {
	case <-expired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer never expired")
	}
	assert.LessOrEqual(t, timer.Remaining(), time.Duration(0))
}

func TestTimerPause(t *testing.T) {
	timer := NewTimer(time.Hour, nil, nil)

	timer.Start()
	time.Sleep(1100 * time.Millisecond)
	timer.Pause()

	paused := timer.Remaining()
	assert.Less(t, paused, time.Hour)

	time.Sleep(1100 * time.Millisecond)
	assert.Equal(t, paused, timer.Remaining(), "paused timer must not tick")

	timer.Stop()
}
