package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidtube/kidtube/internal/config"
	"github.com/kidtube/kidtube/internal/database"
	"github.com/kidtube/kidtube/internal/feed"
	"github.com/kidtube/kidtube/internal/history"
	"github.com/kidtube/kidtube/internal/parental"
	"github.com/kidtube/kidtube/internal/player"
	"github.com/kidtube/kidtube/internal/source"
)

type fakeSurface struct {
	id      string
	videoID string

	mu   sync.Mutex
	sent []string
}

func (s *fakeSurface) ID() string      { return s.id }
func (s *fakeSurface) VideoID() string { return s.videoID }
func (s *fakeSurface) Show()           {}
func (s *fakeSurface) Destroy()        {}

func (s *fakeSurface) Send(command string, _ ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, command)
	return nil
}

func (s *fakeSurface) got(command string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.sent {
		if c == command {
			return true
		}
	}
	return false
}

type fakeFactory struct {
	mu      sync.Mutex
	next    int
	created []*fakeSurface
}

func (f *fakeFactory) New(videoID string, _ player.EmbedOptions) player.Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	s := &fakeSurface{id: fmt.Sprintf("surface-%d", f.next), videoID: videoID}
	f.created = append(f.created, s)
	return s
}

type stubFetcher struct {
	mu        sync.Mutex
	byCat     map[string][]source.VideoRecord
	err       error
	gate      chan struct{} // when set, loadMore fetches block until closed
	moreCalls int
}

func (s *stubFetcher) Fetch(_ context.Context, categoryID string, loadMore bool) ([]source.VideoRecord, error) {
	s.mu.Lock()
	gate := s.gate
	if loadMore {
		s.moreCalls++
	}
	err := s.err
	records := s.byCat[categoryID]
	s.mu.Unlock()

	if loadMore && gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *stubFetcher) loadMoreCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moreCalls
}

type stubSource struct {
	mu      sync.Mutex
	cleared []string
	lastErr error
}

func (s *stubSource) ClearCache(categoryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, categoryID)
}

func (s *stubSource) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func rec(id, channel string) source.VideoRecord {
	return source.VideoRecord{ID: id, Title: "video " + id, Channel: channel, CategoryID: "animals"}
}

type harness struct {
	session  *Session
	fetcher  *stubFetcher
	factory  *fakeFactory
	src      *stubSource
	controls *parental.Store
	history  *history.Service
	online   bool
	timesUp  chan struct{}
}

func newHarness(t *testing.T, fetcher *stubFetcher) *harness {
	t.Helper()

	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	controls, err := parental.NewStore(db, config.ParentalConfig{TimeLimitMinutes: 30, BedtimeHour: 23})
	require.NoError(t, err)
	require.NoError(t, controls.SetBedtimeEnabled(false))

	hist := history.NewService(db, 100)

	assembler := feed.NewAssembler(feed.AssemblerConfig{
		Fetcher:           fetcher,
		EnabledCategories: controls.EnabledCategories,
		IsBlocked:         controls.IsChannelBlocked,
	})

	factory := &fakeFactory{}
	engine := player.NewEngine(player.EngineConfig{
		Factory:            factory.New,
		TransitionDuration: 5 * time.Millisecond,
		AutoAdvanceDelay:   20 * time.Millisecond,
		RetryDelay:         5 * time.Millisecond,
	})

	h := &harness{
		fetcher:  fetcher,
		factory:  factory,
		src:      &stubSource{},
		controls: controls,
		history:  hist,
		online:   true,
		timesUp:  make(chan struct{}, 1),
	}
	h.session = New(Config{
		Source:    h.src,
		Assembler: assembler,
		Engine:    engine,
		Controls:  controls,
		History:   hist,
		Probe:     func(context.Context) bool { return h.online },
		OnTimesUp: func() {
			select {
			case h.timesUp <- struct{}{}:
			default:
			}
		},
	})
	t.Cleanup(h.session.Stop)
	return h
}

func singleCategory(t *testing.T, h *harness) {
	t.Helper()
	require.NoError(t, h.controls.SetEnabledCategories([]string{"animals"}))
}

func TestStart(t *testing.T) {
	fetcher := &stubFetcher{byCat: map[string][]source.VideoRecord{
		"animals": {rec("v1", "zoo"), rec("v2", "zoo"), rec("v3", "zoo")},
	}}
	h := newHarness(t, fetcher)
	singleCategory(t, h)

	require.NoError(t, h.session.Start(context.Background()))
	assert.Len(t, h.session.Feed(), 3)

	// The first video lands in history.
	require.Eventually(t, func() bool {
		entries, err := h.history.Recent(10)
		return err == nil && len(entries) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartBedtime(t *testing.T) {
	h := newHarness(t, &stubFetcher{})
	require.NoError(t, h.controls.SetBedtimeEnabled(true))
	require.NoError(t, h.controls.SetBedtimeHour(time.Now().Hour()))

	assert.ErrorIs(t, h.session.Start(context.Background()), ErrBedtime)
}

func TestStartEmptyVsOffline(t *testing.T) {
	t.Run("empty with connectivity", func(t *testing.T) {
		h := newHarness(t, &stubFetcher{err: errors.New("mirrors down")})
		h.online = true
		assert.ErrorIs(t, h.session.Start(context.Background()), feed.ErrEmptyFeed)
	})

	t.Run("empty without connectivity", func(t *testing.T) {
		h := newHarness(t, &stubFetcher{err: errors.New("mirrors down")})
		h.online = false
		assert.ErrorIs(t, h.session.Start(context.Background()), ErrOffline)
	})
}

func TestStartTimeLimitReached(t *testing.T) {
	h := newHarness(t, &stubFetcher{})
	require.NoError(t, h.controls.AddWatchTime(30*time.Minute, time.Now()))

	assert.ErrorIs(t, h.session.Start(context.Background()), ErrTimeLimit)
}

func TestTimesUpPausesPlayback(t *testing.T) {
	fetcher := &stubFetcher{byCat: map[string][]source.VideoRecord{
		"animals": {rec("v1", "zoo")},
	}}
	h := newHarness(t, fetcher)
	singleCategory(t, h)

	// One second of allowance left.
	require.NoError(t, h.controls.AddWatchTime(30*time.Minute-time.Second, time.Now()))
	require.NoError(t, h.session.Start(context.Background()))

	select {
	case <-h.timesUp:
	case <-time.After(10 * time.Second):
		t.Fatal("time limit never fired")
	}

	require.Eventually(t, func() bool {
		return h.factory.created[0].got(player.CmdPause)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestExtendTime(t *testing.T) {
	fetcher := &stubFetcher{byCat: map[string][]source.VideoRecord{
		"animals": {rec("v1", "zoo")},
	}}
	h := newHarness(t, fetcher)
	singleCategory(t, h)
	require.NoError(t, h.controls.SetPIN("1234"))
	require.NoError(t, h.session.Start(context.Background()))

	assert.Error(t, h.session.ExtendTime("9999", 10))
	assert.Error(t, h.session.ExtendTime("1234", 0))
	assert.NoError(t, h.session.ExtendTime("1234", 10))
}

func TestRefillReentrancyAndStaleness(t *testing.T) {
	many := make([]source.VideoRecord, 10)
	for i := range many {
		many[i] = rec(fmt.Sprintf("v%d", i), "zoo")
	}
	gate := make(chan struct{})
	fetcher := &stubFetcher{
		byCat: map[string][]source.VideoRecord{"animals": many},
		gate:  gate,
	}
	h := newHarness(t, fetcher)
	singleCategory(t, h)
	require.NoError(t, h.session.Start(context.Background()))

	// Both notifications arrive while the first refill is blocked on the
	// gate; they must collapse into a single fetch.
	h.session.RefillNeeded(7)
	h.session.RefillNeeded(8)
	require.Eventually(t, func() bool { return fetcher.loadMoreCalls() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fetcher.loadMoreCalls())

	// Rebuild the feed while the refill is still in flight; its late
	// result must be discarded.
	fetcher.mu.Lock()
	fetcher.byCat["animals"] = []source.VideoRecord{rec("fresh1", "zoo"), rec("fresh2", "zoo")}
	fetcher.mu.Unlock()
	require.NoError(t, h.session.ApplySettings(context.Background(), Settings{
		Categories:       []string{"animals"},
		Languages:        []string{"english"},
		TimeLimitMinutes: 30,
		BedtimeHour:      23,
	}))
	close(gate)

	time.Sleep(100 * time.Millisecond)
	f := h.session.Feed()
	assert.Len(t, f, 2, "stale refill result must not survive the rebuild")
}

func TestDislike(t *testing.T) {
	fetcher := &stubFetcher{byCat: map[string][]source.VideoRecord{
		"animals": {rec("v1", "goodchannel"), rec("v2", "badchannel"), rec("v3", "goodchannel")},
	}}
	h := newHarness(t, fetcher)
	singleCategory(t, h)
	require.NoError(t, h.session.Start(context.Background()))

	// Walk the cursor onto a badchannel video.
	engine := h.session.Engine()
	for {
		cur, ok := engine.Current()
		require.True(t, ok)
		if cur.Channel == "badchannel" {
			break
		}
		before := engine.Cursor()
		engine.Advance(player.DirForward)
		require.Eventually(t, func() bool {
			return engine.State() == player.StatePlaying && engine.Cursor() == before+1
		}, 2*time.Second, time.Millisecond)
	}

	require.NoError(t, h.session.Dislike(context.Background()))

	assert.True(t, h.controls.IsChannelBlocked("badchannel"))
	for _, r := range h.session.Feed() {
		assert.NotEqual(t, "badchannel", r.Channel)
	}
	assert.Len(t, h.session.Feed(), 2)
}

func TestDislikeRebuildsEmptiedFeed(t *testing.T) {
	fetcher := &stubFetcher{byCat: map[string][]source.VideoRecord{
		"animals": {rec("v1", "badchannel"), rec("v2", "badchannel")},
	}}
	h := newHarness(t, fetcher)
	singleCategory(t, h)
	require.NoError(t, h.session.Start(context.Background()))

	// After blocking, the rebuild fetch returns clean material.
	fetcher.mu.Lock()
	fetcher.byCat["animals"] = []source.VideoRecord{rec("v3", "goodchannel")}
	fetcher.mu.Unlock()

	require.NoError(t, h.session.Dislike(context.Background()))
	f := h.session.Feed()
	require.Len(t, f, 1)
	assert.Equal(t, "v3", f[0].ID)
}

func TestApplySettings(t *testing.T) {
	fetcher := &stubFetcher{byCat: map[string][]source.VideoRecord{
		"animals": {rec("v1", "zoo")},
		"space":   {rec("s1", "nasa")},
	}}
	h := newHarness(t, fetcher)
	singleCategory(t, h)
	require.NoError(t, h.session.Start(context.Background()))

	require.NoError(t, h.session.ApplySettings(context.Background(), Settings{
		Categories:       []string{"space"},
		Languages:        []string{"hindi"},
		TimeLimitMinutes: 45,
		BedtimeHour:      20,
	}))

	assert.Equal(t, []string{"space"}, h.controls.EnabledCategories())
	assert.Equal(t, []string{"hindi"}, h.controls.EnabledLanguages())
	assert.Equal(t, 45*time.Minute, h.controls.TimeLimit())
	assert.Equal(t, 20, h.controls.BedtimeHour())

	// Caches dropped and feed rebuilt from the new category.
	assert.Equal(t, []string{""}, func() []string {
		h.src.mu.Lock()
		defer h.src.mu.Unlock()
		return h.src.cleared
	}())
	f := h.session.Feed()
	require.Len(t, f, 1)
	assert.Equal(t, "s1", f[0].ID)
}
