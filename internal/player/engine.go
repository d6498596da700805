package player

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kidtube/kidtube/internal/feed"
	"github.com/kidtube/kidtube/internal/source"
)

// State is the engine's playback state
type State int

const (
	// StateIdle means no feed is loaded
	StateIdle State = iota
	// StateLoading means the current video is being prepared
	StateLoading
	// StatePlaying means a video is active
	StatePlaying
	// StateTransitioning means a slide between two videos is in flight
	StateTransitioning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StateTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// Direction of a navigation request
type Direction int

const (
	DirForward  Direction = 1
	DirBackward Direction = -1
)

// Engine tuning defaults.
const (
	DefaultMaxPreload         = 2
	DefaultTransitionDuration = 400 * time.Millisecond
	DefaultAutoAdvanceDelay   = 500 * time.Millisecond
	defaultRetryDelay         = 150 * time.Millisecond

	// RefillThreshold is how close to the end of the feed the cursor may
	// get before more material is requested.
	RefillThreshold = 3
)

// Listener receives engine notifications. Callbacks run outside the
// engine lock; calling back into the engine is safe.
type Listener interface {
	// VideoChanged fires whenever a new video becomes current
	VideoChanged(record source.VideoRecord, index, total int)
	// RefillNeeded fires when the cursor comes within RefillThreshold of
	// the end of the feed.
	RefillNeeded(index int)
}

// EngineConfig configures a playback engine
type EngineConfig struct {
	Factory            SurfaceFactory
	MaxPreload         int
	TransitionDuration time.Duration
	AutoAdvanceDelay   time.Duration
	CommandRetries     int
	RetryDelay         time.Duration
	StartMuted         bool
	Logger             *slog.Logger
}

// Engine drives playback continuity over a feed: which index is current,
// the off-screen buffer window around it, slide transitions, and
// auto-advance at end of playback. Exactly one transition may be in
// flight; navigation requests arriving mid-transition are dropped.
type Engine struct {
	factory            SurfaceFactory
	maxPreload         int
	transitionDuration time.Duration
	autoAdvanceDelay   time.Duration
	commandRetries     int
	retryDelay         time.Duration
	logger             *slog.Logger

	mu         sync.Mutex
	feed       feed.Feed
	cursor     int
	state      State
	muted      bool
	surfaces   map[int]Surface
	tasks      map[string][]*retryTask
	listeners  []Listener
	endPending bool
	transition *time.Timer
}

// NewEngine creates a playback engine
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.MaxPreload <= 0 {
		cfg.MaxPreload = DefaultMaxPreload
	}
	if cfg.TransitionDuration <= 0 {
		cfg.TransitionDuration = DefaultTransitionDuration
	}
	if cfg.AutoAdvanceDelay <= 0 {
		cfg.AutoAdvanceDelay = DefaultAutoAdvanceDelay
	}
	if cfg.CommandRetries <= 0 {
		cfg.CommandRetries = DefaultCommandRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		factory:            cfg.Factory,
		maxPreload:         cfg.MaxPreload,
		transitionDuration: cfg.TransitionDuration,
		autoAdvanceDelay:   cfg.AutoAdvanceDelay,
		commandRetries:     cfg.CommandRetries,
		retryDelay:         cfg.RetryDelay,
		muted:              cfg.StartMuted,
		logger:             cfg.Logger,
		state:              StateIdle,
		surfaces:           make(map[int]Surface),
		tasks:              make(map[string][]*retryTask),
	}
}

// AddListener subscribes to engine notifications
func (e *Engine) AddListener(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// State returns the current playback state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cursor returns the index of the current video
func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Muted returns the engine's audio flag
func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

// Current returns the record at the cursor, if any
func (e *Engine) Current() (source.VideoRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.feed) == 0 {
		return source.VideoRecord{}, false
	}
	return e.feed[e.cursor], true
}

// BufferedIndices returns the feed indices with a live surface
func (e *Engine) BufferedIndices() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, 0, len(e.surfaces))
	for i := range e.surfaces {
		out = append(out, i)
	}
	return out
}

// SetFeed replaces the feed wholesale, discarding every buffered surface,
// and starts playing at startIndex. An empty feed is a no-op.
func (e *Engine) SetFeed(f feed.Feed, startIndex int) {
	e.mu.Lock()
	if len(f) == 0 {
		e.mu.Unlock()
		return
	}
	e.destroyAllLocked()
	if startIndex < 0 {
		startIndex = 0
	}
	if startIndex > len(f)-1 {
		startIndex = len(f) - 1
	}
	e.feed = f
	e.cursor = startIndex
	e.state = StateLoading

	s := e.factory(f[startIndex].ID, EmbedOptions{Autoplay: true, Muted: e.muted})
	e.surfaces[startIndex] = s
	e.state = StatePlaying
	e.ensureBufferLocked()
	e.logger.Debug("feed set", "size", len(f), "start", startIndex)
	notify := e.notifyLocked()
	e.mu.Unlock()

	notify()
}

// UpdateFeed swaps in a refreshed feed without interrupting playback.
// Buffered surfaces whose slot now holds a different video are discarded;
// the current surface is untouched because refills never move the viewed
// prefix.
func (e *Engine) UpdateFeed(f feed.Feed) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(f) == 0 || e.state == StateIdle {
		return
	}
	e.feed = f
	if e.cursor > len(f)-1 {
		e.cursor = len(f) - 1
	}
	e.ensureBufferLocked()
}

// Advance navigates one step in the given direction. No-op at the feed
// edges and while a transition is already in flight.
func (e *Engine) Advance(dir Direction) {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	dest := e.cursor + int(dir)
	if dest < 0 || dest > len(e.feed)-1 {
		e.mu.Unlock()
		return
	}

	e.state = StateTransitioning
	if s, ok := e.surfaces[dest]; ok {
		// Adopt the pre-buffered surface, keeping its buffering progress.
		s.Show()
	} else {
		e.surfaces[dest] = e.factory(e.feed[dest].ID, EmbedOptions{Autoplay: true, Muted: e.muted})
	}
	e.transition = time.AfterFunc(e.transitionDuration, func() {
		e.finalizeTransition(dest)
	})
	e.mu.Unlock()
}

func (e *Engine) finalizeTransition(dest int) {
	e.mu.Lock()
	if e.state != StateTransitioning {
		e.mu.Unlock()
		return
	}
	e.cursor = dest
	e.state = StatePlaying

	// Buffered surfaces start muted; reconcile the newly current one with
	// the engine's audio flag.
	if s, ok := e.surfaces[dest]; ok {
		e.sendLocked(s, e.audioCommand(true))
	}
	e.ensureBufferLocked()
	notify := e.notifyLocked()
	e.mu.Unlock()

	notify()
}

// ToggleMute flips the audio flag and reconfigures the live surface and
// every buffered surface in place. No surface is destroyed, so buffering
// progress survives the toggle.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = !e.muted
	for i, s := range e.surfaces {
		e.sendLocked(s, e.audioCommand(i == e.cursor))
	}
	return e.muted
}

// Pause halts the current surface
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.surfaces[e.cursor]; ok {
		e.sendLocked(s, CmdPause)
	}
}

// Play resumes the current surface
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.surfaces[e.cursor]; ok {
		e.sendLocked(s, CmdPlay)
	}
}

// HandleEvent feeds one decoded surface event into the engine. State
// changes are honored only from the currently active surface; an "ended"
// code schedules a forward advance after the debounce delay, with
// duplicate end signals inside the window ignored.
func (e *Engine) HandleEvent(ev PlayerEvent) {
	switch ev.Kind {
	case EventStateChange:
		if ev.StateCode != StateEnded {
			return
		}
		e.mu.Lock()
		cur, ok := e.surfaces[e.cursor]
		if !ok || cur.ID() != ev.SurfaceID || e.endPending {
			e.mu.Unlock()
			return
		}
		e.endPending = true
		time.AfterFunc(e.autoAdvanceDelay, func() {
			e.mu.Lock()
			e.endPending = false
			e.mu.Unlock()
			e.Advance(DirForward)
		})
		e.mu.Unlock()

	case EventListening:
		// The control channel just came up; reconcile that surface's
		// audio state.
		e.mu.Lock()
		for i, s := range e.surfaces {
			if s.ID() == ev.SurfaceID {
				e.sendLocked(s, e.audioCommand(i == e.cursor))
				break
			}
		}
		e.mu.Unlock()
	}
}

// Close tears the engine down, destroying every surface
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transition != nil {
		e.transition.Stop()
	}
	e.destroyAllLocked()
	e.feed = nil
	e.cursor = 0
	e.state = StateIdle
}

// audioCommand returns the command reconciling a surface with the audio
// policy: the active surface follows the mute flag, buffered ones stay
// muted.
func (e *Engine) audioCommand(active bool) string {
	if active && !e.muted {
		return CmdUnmute
	}
	return CmdMute
}

// sendLocked dispatches a fire-and-forget command with bounded retries
func (e *Engine) sendLocked(s Surface, command string) {
	task := newRetryTask(func() error {
		return s.Send(command)
	}, e.commandRetries, e.retryDelay)
	e.tasks[s.ID()] = append(e.tasks[s.ID()], task)
}

// ensureBufferLocked reconciles the buffer window around the cursor:
// surfaces outside [cursor-1, cursor+maxPreload] or holding a stale video
// are destroyed, missing slots inside the window are filled with muted,
// hidden, autoplaying surfaces.
func (e *Engine) ensureBufferLocked() {
	lo := e.cursor - 1
	hi := e.cursor + e.maxPreload

	for i, s := range e.surfaces {
		if i < lo || i > hi || i > len(e.feed)-1 || s.VideoID() != e.feed[i].ID {
			e.destroySurfaceLocked(i)
		}
	}
	for i := lo; i <= hi; i++ {
		if i < 0 || i > len(e.feed)-1 {
			continue
		}
		if _, ok := e.surfaces[i]; ok {
			continue
		}
		e.surfaces[i] = e.factory(e.feed[i].ID, EmbedOptions{Autoplay: true, Muted: true, Hidden: true})
	}
}

func (e *Engine) destroySurfaceLocked(i int) {
	s, ok := e.surfaces[i]
	if !ok {
		return
	}
	for _, task := range e.tasks[s.ID()] {
		task.cancel()
	}
	delete(e.tasks, s.ID())
	s.Destroy()
	delete(e.surfaces, i)
}

func (e *Engine) destroyAllLocked() {
	for i := range e.surfaces {
		e.destroySurfaceLocked(i)
	}
}

// notifyLocked snapshots the state a notification needs and returns a
// closure to run after the lock is released, so listeners may call back
// into the engine.
func (e *Engine) notifyLocked() func() {
	record := e.feed[e.cursor]
	index := e.cursor
	total := len(e.feed)
	needRefill := total-1-index < RefillThreshold
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)

	return func() {
		for _, l := range listeners {
			l.VideoChanged(record, index, total)
			if needRefill {
				l.RefillNeeded(index)
			}
		}
	}
}
