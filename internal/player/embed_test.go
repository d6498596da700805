package player

import (
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedURL(t *testing.T) {
	raw := EmbedURL(DefaultEmbedBase, "abc123", EmbedOptions{Autoplay: true, Muted: true})
	require.True(t, strings.HasPrefix(raw, DefaultEmbedBase+"/abc123?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "1", q.Get("autoplay"))
	assert.Equal(t, "1", q.Get("mute"))
	assert.Equal(t, "1", q.Get("enablejsapi"))
	assert.Equal(t, "0", q.Get("rel"), "related suggestions disabled")
	assert.Equal(t, "0", q.Get("fs"))
	assert.Equal(t, "0", q.Get("controls"))
	assert.Equal(t, "0", q.Get("cc_load_policy"))

	quiet := EmbedURL(DefaultEmbedBase, "abc123", EmbedOptions{})
	uq, err := url.Parse(quiet)
	require.NoError(t, err)
	assert.Empty(t, uq.Query().Get("autoplay"))
	assert.Empty(t, uq.Query().Get("mute"))
}

func TestParsePlayerEvent(t *testing.T) {
	t.Run("listening", func(t *testing.T) {
		ev, err := ParsePlayerEvent([]byte(`{"event":"listening","id":"s-1"}`))
		require.NoError(t, err)
		assert.Equal(t, EventListening, ev.Kind)
		assert.Equal(t, "s-1", ev.SurfaceID)
	})

	t.Run("command", func(t *testing.T) {
		ev, err := ParsePlayerEvent([]byte(`{"event":"command","id":"s-1","func":"mute","args":[]}`))
		require.NoError(t, err)
		assert.Equal(t, EventCommand, ev.Kind)
		assert.Equal(t, "mute", ev.Command)
	})

	t.Run("state change", func(t *testing.T) {
		ev, err := ParsePlayerEvent([]byte(`{"event":"onStateChange","id":"s-1","info":0}`))
		require.NoError(t, err)
		assert.Equal(t, EventStateChange, ev.Kind)
		assert.Equal(t, StateEnded, ev.StateCode)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		cases := []string{
			`not json`,
			`{"event":"somethingelse"}`,
			`{"event":"command"}`,
			`{"event":"onStateChange","info":"playing"}`,
		}
		for _, c := range cases {
			_, err := ParsePlayerEvent([]byte(c))
			assert.Error(t, err, "payload %q should be rejected", c)
		}
	})
}

func TestEncodeCommandRoundTrip(t *testing.T) {
	raw, err := EncodeCommand("s-1", CmdUnmute)
	require.NoError(t, err)

	ev, err := ParsePlayerEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, EventCommand, ev.Kind)
	assert.Equal(t, "s-1", ev.SurfaceID)
	assert.Equal(t, CmdUnmute, ev.Command)
}

func TestChannelSurface(t *testing.T) {
	out := make(chan []byte, 1)
	factory := NewChannelSurfaceFactory("", out)

	s := factory("abc123", EmbedOptions{Autoplay: true, Muted: true, Hidden: true})
	cs, ok := s.(*ChannelSurface)
	require.True(t, ok)

	assert.NotEmpty(t, cs.ID())
	assert.Equal(t, "abc123", cs.VideoID())
	assert.Contains(t, cs.URL(), "abc123")
	assert.True(t, cs.Hidden())

	require.NoError(t, s.Send(CmdMute))
	ev, err := ParsePlayerEvent(<-out)
	require.NoError(t, err)
	assert.Equal(t, CmdMute, ev.Command)
	assert.Equal(t, cs.ID(), ev.SurfaceID)

	t.Run("full channel drops", func(t *testing.T) {
		require.NoError(t, s.Send(CmdPlay))
		assert.ErrorIs(t, s.Send(CmdPause), ErrChannelFull)
	})

	t.Run("shown on activation", func(t *testing.T) {
		s.Show()
		assert.False(t, cs.Hidden())
	})

	t.Run("destroyed surface refuses sends", func(t *testing.T) {
		s.Destroy()
		assert.ErrorIs(t, s.Send(CmdPlay), ErrSurfaceDestroyed)
	})
}

func TestRetryTask(t *testing.T) {
	t.Run("stops on success", func(t *testing.T) {
		var calls atomic.Int32
		newRetryTask(func() error {
			if calls.Add(1) < 3 {
				return errors.New("not ready")
			}
			return nil
		}, 5, time.Millisecond)

		require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls atomic.Int32
		newRetryTask(func() error {
			calls.Add(1)
			return errors.New("never ready")
		}, 3, time.Millisecond)

		require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("cancel stops pending attempts", func(t *testing.T) {
		var calls atomic.Int32
		task := newRetryTask(func() error {
			calls.Add(1)
			return errors.New("never ready")
		}, 10, 50*time.Millisecond)

		require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, time.Millisecond)
		task.cancel()
		settled := calls.Load()
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, settled, calls.Load())
	})
}
