package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kidtube/kidtube/internal/feed"
	"github.com/kidtube/kidtube/internal/history"
	"github.com/kidtube/kidtube/internal/parental"
	"github.com/kidtube/kidtube/internal/player"
	"github.com/kidtube/kidtube/internal/source"
)

// Errors surfaced to the caller at session start.
var (
	// ErrBedtime means the clock is past the configured bedtime hour
	ErrBedtime = errors.New("past bedtime")
	// ErrOffline means feed assembly found nothing and no network
	// connectivity was detected.
	ErrOffline = errors.New("no network connectivity")
	// ErrTimeLimit means today's watch allowance is already used up
	ErrTimeLimit = errors.New("daily time limit reached")
)

// SourceControl is the slice of the content source a session manages
// directly: cache invalidation on settings changes and the last-error
// slot for display.
type SourceControl interface {
	ClearCache(categoryID string)
	LastError() error
}

// Probe checks network connectivity, used to tell an empty feed apart
// from being offline.
type Probe func(ctx context.Context) bool

// Settings is the parent-editable configuration applied in one shot from
// the PIN-gated settings flow.
type Settings struct {
	Categories       []string
	Languages        []string
	TimeLimitMinutes int
	BedtimeHour      int
}

// Config wires a Session together
type Config struct {
	Source    SourceControl
	Assembler *feed.Assembler
	Engine    *player.Engine
	Controls  *parental.Store
	History   *history.Service
	Probe     Probe
	Logger    *slog.Logger

	// OnTimesUp fires when the daily allowance runs out, after playback
	// has been paused.
	OnTimesUp func()
}

// Session is one child-facing viewing session: it owns the live feed,
// routes engine notifications to history and refill, and enforces the
// parental time limit and bedtime window. All feed state lives here
// rather than in package globals, so sessions tear down cleanly.
type Session struct {
	id        string
	src       SourceControl
	assembler *feed.Assembler
	engine    *player.Engine
	controls  *parental.Store
	history   *history.Service
	probe     Probe
	logger    *slog.Logger
	onTimesUp func()

	mu         sync.Mutex
	feed       feed.Feed
	generation uint64
	refilling  bool
	timer      *parental.Timer
	started    bool
}

// New creates a session and subscribes it to the engine's notifications
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Probe == nil {
		cfg.Probe = DialProbe("watch.kidtube.app:443")
	}
	s := &Session{
		id:        uuid.NewString(),
		src:       cfg.Source,
		assembler: cfg.Assembler,
		engine:    cfg.Engine,
		controls:  cfg.Controls,
		history:   cfg.History,
		probe:     cfg.Probe,
		onTimesUp: cfg.OnTimesUp,
	}
	s.logger = cfg.Logger.With("session", s.id)
	cfg.Engine.AddListener(s)
	return s
}

// ID returns the session's identity token
func (s *Session) ID() string { return s.id }

// Engine exposes the playback engine for navigation and mute control
func (s *Session) Engine() *player.Engine { return s.engine }

// DialProbe returns a connectivity probe that attempts a TCP connection
// to the given host:port.
func DialProbe(addr string) Probe {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: 3 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// ProbeAddrFromMirror derives a probe address from a mirror base URL
func ProbeAddrFromMirror(mirror string) (string, error) {
	u, err := url.Parse(mirror)
	if err != nil {
		return "", fmt.Errorf("invalid mirror url: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "http":
			host += ":80"
		default:
			host += ":443"
		}
	}
	return host, nil
}

// Start checks the parental gates, assembles the initial feed and begins
// playback at index 0. An empty assembly is classified as ErrOffline when
// the connectivity probe fails, otherwise feed.ErrEmptyFeed passes
// through. There is no automatic retry; the caller re-invokes Start.
func (s *Session) Start(ctx context.Context) error {
	if s.controls.IsBedtime(time.Now()) {
		return ErrBedtime
	}
	reached, err := s.controls.TimeLimitReached(time.Now())
	if err != nil {
		return err
	}
	if reached {
		return ErrTimeLimit
	}

	f, err := s.assembler.BuildInitial(ctx)
	if err != nil {
		if errors.Is(err, feed.ErrEmptyFeed) && !s.probe(ctx) {
			return ErrOffline
		}
		return err
	}

	s.mu.Lock()
	s.feed = f
	s.generation++
	s.started = true
	s.mu.Unlock()

	s.engine.SetFeed(f, 0)
	return s.startTimer()
}

func (s *Session) startTimer() error {
	limit := s.controls.TimeLimit()
	if limit <= 0 {
		return nil
	}
	watched, err := s.controls.WatchedToday(time.Now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = parental.NewTimer(limit-watched, s.tick, s.timesUp)
	timer := s.timer
	s.mu.Unlock()

	timer.Start()
	return nil
}

func (s *Session) tick(time.Duration) {
	if err := s.controls.AddWatchTime(time.Second, time.Now()); err != nil {
		s.logger.Warn("failed to record watch time", "error", err)
	}
}

func (s *Session) timesUp() {
	s.logger.Info("daily time limit reached, pausing playback")
	s.engine.Pause()
	if s.onTimesUp != nil {
		s.onTimesUp()
	}
}

// ExtendTime grants extra minutes after PIN verification and restarts the
// countdown.
func (s *Session) ExtendTime(pin string, minutes int) error {
	if !s.controls.VerifyPIN(pin) {
		return fmt.Errorf("incorrect pin")
	}
	if minutes <= 0 {
		return fmt.Errorf("extension must be positive")
	}

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = parental.NewTimer(time.Duration(minutes)*time.Minute, s.tick, s.timesUp)
	timer := s.timer
	s.mu.Unlock()

	timer.Start()
	s.engine.Play()
	return nil
}

// VideoChanged implements player.Listener: each new current video lands
// in the watch history.
func (s *Session) VideoChanged(record source.VideoRecord, index, total int) {
	s.logger.Debug("video changed", "video", record.ID, "index", index, "total", total)
	if err := s.history.Add(record); err != nil {
		s.logger.Warn("failed to record history", "error", err)
	}
}

// RefillNeeded implements player.Listener: the cursor is approaching the
// end of the feed, fetch more material in the background. Overlapping
// requests collapse into one, and a result computed against a feed that
// was rebuilt meanwhile is discarded.
func (s *Session) RefillNeeded(index int) {
	s.mu.Lock()
	if s.refilling || !s.started {
		s.mu.Unlock()
		return
	}
	s.refilling = true
	f := s.feed
	gen := s.generation
	s.mu.Unlock()

	go s.refill(f, index, gen)
}

func (s *Session) refill(f feed.Feed, cursor int, gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	updated, err := s.assembler.Refill(ctx, f, cursor)

	s.mu.Lock()
	s.refilling = false
	if err != nil {
		s.mu.Unlock()
		// Swallowed: the next threshold crossing retries.
		s.logger.Warn("refill failed", "error", err)
		return
	}
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding stale refill result")
		return
	}
	s.feed = updated
	s.mu.Unlock()

	s.engine.UpdateFeed(updated)
}

// Dislike blocks the current video's channel and scrubs it from the feed
// in one step. If that empties the feed a full rebuild is attempted.
func (s *Session) Dislike(ctx context.Context) error {
	record, ok := s.engine.Current()
	if !ok {
		return fmt.Errorf("nothing is playing")
	}
	if err := s.controls.BlockChannel(record.Channel); err != nil {
		return err
	}

	s.mu.Lock()
	kept, cursor, rebuild := s.assembler.RemoveBlocked(s.feed, s.engine.Cursor())
	if !rebuild {
		s.feed = kept
		// Invalidate any in-flight refill computed against the old feed.
		s.generation++
	}
	s.mu.Unlock()

	if rebuild {
		return s.rebuild(ctx)
	}

	s.engine.SetFeed(kept, cursor)
	return nil
}

// ApplySettings persists the parent's changes, drops every cached page
// and rebuilds the feed from scratch.
func (s *Session) ApplySettings(ctx context.Context, st Settings) error {
	if err := s.controls.SetEnabledCategories(st.Categories); err != nil {
		return err
	}
	if err := s.controls.SetEnabledLanguages(st.Languages); err != nil {
		return err
	}
	if err := s.controls.SetTimeLimitMinutes(st.TimeLimitMinutes); err != nil {
		return err
	}
	if err := s.controls.SetBedtimeHour(st.BedtimeHour); err != nil {
		return err
	}

	s.src.ClearCache("")
	return s.rebuild(ctx)
}

func (s *Session) rebuild(ctx context.Context) error {
	f, err := s.assembler.BuildInitial(ctx)
	if err != nil {
		if errors.Is(err, feed.ErrEmptyFeed) && !s.probe(ctx) {
			return ErrOffline
		}
		return err
	}

	s.mu.Lock()
	s.feed = f
	s.generation++
	s.mu.Unlock()

	s.engine.SetFeed(f, 0)
	return nil
}

// Feed returns a copy of the session's current feed
func (s *Session) Feed() feed.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(feed.Feed, len(s.feed))
	copy(out, s.feed)
	return out
}

// LastSourceError exposes the content source's most recent failure for
// the information screens.
func (s *Session) LastSourceError() error {
	return s.src.LastError()
}

// Stop tears the session down
func (s *Session) Stop() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.started = false
	s.mu.Unlock()

	s.engine.Close()
}
