package conn

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a scripted in-memory transport. Read blocks until a frame
// is injected or the transport is failed.
type fakeTransport struct {
	in     chan []byte
	fail   chan error
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:   make(chan []byte, 16),
		fail: make(chan error, 1),
	}
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-t.fail:
		return nil, err
	case data := <-t.in:
		return data, nil
	}
}

func (t *fakeTransport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("write on closed transport")
	}
	t.sent = append(t.sent, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Close(code websocket.StatusCode, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) sentFrames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.sent...)
}

// stateRecorder captures every observed transition.
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) observe(s State, err error) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestBackoffDelayDoublesPerAttempt(t *testing.T) {
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	for i, w := range want {
		got := backoffDelay(DefaultReconnectBase, i+1)
		if got != w {
			t.Fatalf("attempt %d: delay = %s, want %s", i+1, got, w)
		}
	}
}

func TestConnectAndReceive(t *testing.T) {
	ft := newFakeTransport()
	var frames [][]byte
	var mu sync.Mutex
	m := NewManager(Config{
		URL: "ws://test/room/ws/r1",
		Dial: func(ctx context.Context, url string) (Transport, error) {
			return ft, nil
		},
		OnFrame: func(data []byte) {
			mu.Lock()
			frames = append(frames, data)
			mu.Unlock()
		},
	})
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, StateConnected, m.State())

	ft.in <- []byte(`{"type":"pong","ts":1}`)
	ft.in <- []byte(`{"type":"pong","ts":2}`)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) == 2
	}, time.Second, 5*time.Millisecond, "frames must be delivered in receipt order")

	mu.Lock()
	assert.Equal(t, `{"type":"pong","ts":1}`, string(frames[0]))
	mu.Unlock()
}

func TestConnectFailureDoesNotStartReconnectLoop(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	m := NewManager(Config{
		URL:           "ws://test/room/ws/r1",
		ReconnectBase: time.Millisecond,
		Dial: func(ctx context.Context, url string) (Transport, error) {
			mu.Lock()
			dials++
			mu.Unlock()
			return nil, errors.New("refused")
		},
	})
	defer m.Close()

	require.Error(t, m.Connect(context.Background()))
	assert.Equal(t, StateDisconnected, m.State())

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, dials, "initial connect failure must not retry")
	mu.Unlock()
}

func TestReconnectStopsAfterMaxAttempts(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	first := newFakeTransport()
	m := NewManager(Config{
		URL:           "ws://test/room/ws/r1",
		ReconnectBase: time.Millisecond,
		Dial: func(ctx context.Context, url string) (Transport, error) {
			mu.Lock()
			dials++
			n := dials
			mu.Unlock()
			if n == 1 {
				return first, nil
			}
			return nil, errors.New("still down")
		},
	})
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))

	// Unexpected close with no close frame: retryable.
	first.fail <- errors.New("connection reset")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials == 1+DefaultMaxReconnectAttempts
	}, 2*time.Second, 5*time.Millisecond)

	// Parked: no further automatic attempts.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1+DefaultMaxReconnectAttempts, dials)
	mu.Unlock()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestAttemptCounterResetsOnSuccessfulOpen(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	transports := []*fakeTransport{newFakeTransport(), newFakeTransport()}
	m := NewManager(Config{
		URL:           "ws://test/room/ws/r1",
		ReconnectBase: time.Millisecond,
		Dial: func(ctx context.Context, url string) (Transport, error) {
			mu.Lock()
			dials++
			n := dials
			mu.Unlock()
			if n <= len(transports) {
				return transports[n-1], nil
			}
			return nil, errors.New("down")
		},
	})
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))
	transports[0].fail <- errors.New("blip")

	assert.Eventually(t, func() bool {
		return m.State() == StateConnected
	}, time.Second, 5*time.Millisecond, "first retry should land on the second transport")

	m.mu.Lock()
	attempts := m.attempts
	m.mu.Unlock()
	assert.Zero(t, attempts, "attempt counter must reset on successful open")
}

func TestTerminalCloseDoesNotReconnect(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	ft := newFakeTransport()
	m := NewManager(Config{
		URL:           "ws://test/room/ws/r1",
		ReconnectBase: time.Millisecond,
		Dial: func(ctx context.Context, url string) (Transport, error) {
			mu.Lock()
			dials++
			mu.Unlock()
			return ft, nil
		},
	})
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))

	ft.fail <- websocket.CloseError{Code: websocket.StatusPolicyViolation, Reason: "kicked"}

	assert.Eventually(t, func() bool {
		return m.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, dials, "policy violation close must not retry")
	mu.Unlock()
}

func TestCloseCancelsScheduledReconnect(t *testing.T) {
	rec := &stateRecorder{}
	ft := newFakeTransport()
	m := NewManager(Config{
		URL:           "ws://test/room/ws/r1",
		ReconnectBase: time.Hour, // never fires within the test
		Dial: func(ctx context.Context, url string) (Transport, error) {
			return ft, nil
		},
		OnState: rec.observe,
	})

	require.NoError(t, m.Connect(context.Background()))
	ft.fail <- errors.New("dropped")

	assert.Eventually(t, func() bool {
		return m.State() == StateDisconnected
	}, time.Second, 5*time.Millisecond)

	m.Close()

	// Even if the timer were to fire now, retry must be a no-op.
	m.retry()
	time.Sleep(20 * time.Millisecond)

	for _, s := range rec.all()[2:] { // after connecting, connected
		assert.NotEqual(t, StateConnecting, s, "no connecting transition may follow Close")
	}
	assert.Equal(t, StateDisconnected, m.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(Config{
		URL:  "ws://test/room/ws/r1",
		Dial: func(ctx context.Context, url string) (Transport, error) { return ft, nil },
	})
	require.NoError(t, m.Connect(context.Background()))

	m.Close()
	m.Close()
	assert.Equal(t, StateDisconnected, m.State())

	if err := m.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Connect after Close = %v, want ErrClosed", err)
	}
}

func TestSendWhileDisconnectedIsLoggedNoop(t *testing.T) {
	m := NewManager(Config{
		URL:  "ws://test/room/ws/r1",
		Dial: func(ctx context.Context, url string) (Transport, error) { return nil, errors.New("no") },
	})
	defer m.Close()

	// Must not panic, queue, or error.
	m.Send([]byte(`{"type":"join"}`))
}

func TestHeartbeatEmitsPings(t *testing.T) {
	ft := newFakeTransport()
	m := NewManager(Config{
		URL:               "ws://test/room/ws/r1",
		HeartbeatInterval: 5 * time.Millisecond,
		Dial:              func(ctx context.Context, url string) (Transport, error) { return ft, nil },
	})
	defer m.Close()

	require.NoError(t, m.Connect(context.Background()))

	assert.Eventually(t, func() bool {
		for _, frame := range ft.sentFrames() {
			var p struct {
				Type string `json:"type"`
				Ts   int64  `json:"ts"`
			}
			if json.Unmarshal(frame, &p) == nil && p.Type == "ping" && p.Ts > 0 {
				return true
			}
		}
		return false
	}, time.Second, 2*time.Millisecond, "heartbeat should emit ping frames with a client timestamp")
}
