package player

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// DefaultEmbedBase is the provider endpoint embed URLs are built against
const DefaultEmbedBase = "https://www.youtube-nocookie.com/embed"

// EmbedOptions configure a player surface at construction time
type EmbedOptions struct {
	Autoplay bool
	Muted    bool
	// Hidden surfaces buffer off-screen; fullscreen and keyboard input
	// stay disabled for them.
	Hidden bool
}

// EmbedURL builds the provider embed URL for a video. Suggestions,
// captions, branding chrome and fullscreen are suppressed so the child
// only ever sees the video itself.
func EmbedURL(base, videoID string, opts EmbedOptions) string {
	params := url.Values{}
	params.Set("enablejsapi", "1")
	params.Set("playsinline", "1")
	params.Set("rel", "0")
	params.Set("fs", "0")
	params.Set("controls", "0")
	params.Set("disablekb", "1")
	params.Set("iv_load_policy", "3")
	params.Set("cc_load_policy", "0")
	params.Set("modestbranding", "1")
	if opts.Autoplay {
		params.Set("autoplay", "1")
	}
	if opts.Muted {
		params.Set("mute", "1")
	}
	return fmt.Sprintf("%s/%s?%s", base, url.PathEscape(videoID), params.Encode())
}

// Control commands understood by the embedded player surface.
const (
	CmdPlay   = "playVideo"
	CmdPause  = "pauseVideo"
	CmdMute   = "mute"
	CmdUnmute = "unMute"
)

// StateEnded is the provider state code for natural end of playback
const StateEnded = 0

// EventKind discriminates the player event union
type EventKind int

const (
	// EventListening is the surface's handshake announcing its control
	// channel is ready.
	EventListening EventKind = iota
	// EventCommand is an outbound control instruction
	EventCommand
	// EventStateChange carries a provider playback state code
	EventStateChange
)

// PlayerEvent is one decoded message on a surface's control channel.
// SurfaceID identifies the sender; the engine only honors state changes
// from the currently active surface.
type PlayerEvent struct {
	Kind      EventKind
	SurfaceID string

	// EventCommand only
	Command string
	Args    []any

	// EventStateChange only
	StateCode int
}

type wireEvent struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Func  string          `json:"func,omitempty"`
	Args  []any           `json:"args,omitempty"`
	Info  json.RawMessage `json:"info,omitempty"`
}

// EncodeCommand serializes a control command for the surface channel
func EncodeCommand(surfaceID, command string, args ...any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return json.Marshal(wireEvent{Event: "command", ID: surfaceID, Func: command, Args: args})
}

// ParsePlayerEvent decodes one raw channel message. Malformed or
// unrecognized payloads are rejected, never propagated.
func ParsePlayerEvent(raw []byte) (PlayerEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return PlayerEvent{}, fmt.Errorf("malformed player event: %w", err)
	}

	switch w.Event {
	case "listening":
		return PlayerEvent{Kind: EventListening, SurfaceID: w.ID}, nil
	case "command":
		if w.Func == "" {
			return PlayerEvent{}, fmt.Errorf("command event without func")
		}
		return PlayerEvent{Kind: EventCommand, SurfaceID: w.ID, Command: w.Func, Args: w.Args}, nil
	case "onStateChange":
		var code int
		if err := json.Unmarshal(w.Info, &code); err != nil {
			return PlayerEvent{}, fmt.Errorf("state change without numeric code: %w", err)
		}
		return PlayerEvent{Kind: EventStateChange, SurfaceID: w.ID, StateCode: code}, nil
	default:
		return PlayerEvent{}, fmt.Errorf("unknown player event %q", w.Event)
	}
}
