package player

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Surface is one embedded player instance. Implementations wrap whatever
// rendering host is in use; the engine only ever talks to this interface.
// Send is asynchronous and may silently drop commands sent before the
// surface's control channel is ready, hence the engine's bounded retries.
type Surface interface {
	// ID is the surface's identity token, used to filter inbound events
	// by sender.
	ID() string
	// VideoID is the video this surface was constructed for
	VideoID() string
	// Send pushes one control command over the surface's channel
	Send(command string, args ...any) error
	// Show brings a hidden, pre-buffering surface on screen
	Show()
	// Destroy tears the surface down; it must not be used afterwards
	Destroy()
}

// SurfaceFactory constructs a surface for a video with the given embed
// configuration.
type SurfaceFactory func(videoID string, opts EmbedOptions) Surface

// ChannelSurface is a headless surface that serializes control commands
// onto an outbound byte channel for a host bridge to relay to the real
// embedded player. Sends never block: a full channel drops the command,
// which the engine's retry policy papers over.
type ChannelSurface struct {
	id      string
	videoID string
	url     string
	out     chan<- []byte

	mu        sync.Mutex
	hidden    bool
	destroyed bool
}

// ErrSurfaceDestroyed is returned by Send after Destroy
var ErrSurfaceDestroyed = errors.New("surface destroyed")

// ErrChannelFull is returned by Send when the outbound channel is full
var ErrChannelFull = errors.New("surface channel full")

// NewChannelSurfaceFactory returns a factory producing ChannelSurfaces
// whose embed URLs are built against base and whose commands flow into
// out.
func NewChannelSurfaceFactory(base string, out chan<- []byte) SurfaceFactory {
	if base == "" {
		base = DefaultEmbedBase
	}
	return func(videoID string, opts EmbedOptions) Surface {
		return &ChannelSurface{
			id:      uuid.NewString(),
			videoID: videoID,
			url:     EmbedURL(base, videoID, opts),
			hidden:  opts.Hidden,
			out:     out,
		}
	}
}

func (s *ChannelSurface) ID() string      { return s.id }
func (s *ChannelSurface) VideoID() string { return s.videoID }

// URL is the embed URL the host should load for this surface
func (s *ChannelSurface) URL() string { return s.url }

// Hidden reports whether the surface is buffering off-screen
func (s *ChannelSurface) Hidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}

func (s *ChannelSurface) Send(command string, args ...any) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrSurfaceDestroyed
	}
	s.mu.Unlock()

	payload, err := EncodeCommand(s.id, command, args...)
	if err != nil {
		return err
	}
	select {
	case s.out <- payload:
		return nil
	default:
		return ErrChannelFull
	}
}

func (s *ChannelSurface) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = false
}

func (s *ChannelSurface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}
