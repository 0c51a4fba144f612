// internal/conn/manager.go
package conn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/chainwars-gg/roomsync/internal/protocol"
)

// State is the derived connection state exposed to observers.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	// DefaultHeartbeatInterval is how often a ping frame is emitted once open.
	DefaultHeartbeatInterval = 5 * time.Second
	// DefaultReconnectBase is the first reconnect delay; each further attempt
	// doubles it.
	DefaultReconnectBase = 1000 * time.Millisecond
	// DefaultMaxReconnectAttempts caps automatic reconnection. Exceeding it
	// parks the manager in StateDisconnected until a fresh mount.
	DefaultMaxReconnectAttempts = 5

	writeTimeout = 5 * time.Second
)

// ErrClosed is returned by Connect after an explicit Close.
var ErrClosed = errors.New("connection manager closed")

// Transport is the minimal socket surface the manager needs. Production uses
// a coder/websocket connection; tests inject fakes.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a transport to the given room URL.
type Dialer func(ctx context.Context, url string) (Transport, error)

// Config wires a Manager. Zero-valued durations and counts pick defaults.
type Config struct {
	URL    string
	Dial   Dialer
	Logger *logrus.Logger

	HeartbeatInterval    time.Duration
	ReconnectBase        time.Duration
	MaxReconnectAttempts int

	// OnFrame receives every inbound payload, in receipt order, on the read
	// pump goroutine.
	OnFrame func(data []byte)
	// OnState is invoked on every state transition with the triggering error
	// (nil on clean transitions).
	OnState func(state State, err error)
}

// Manager owns one socket's lifecycle: connect, heartbeat, backoff
// reconnect, teardown. One manager per room; two rooms share nothing.
type Manager struct {
	mu sync.Mutex

	url    string
	dial   Dialer
	logger *logrus.Logger

	heartbeatInterval time.Duration
	reconnectBase     time.Duration
	maxAttempts       int

	onFrame func([]byte)
	onState func(State, error)

	state     State
	transport Transport
	attempts  int
	gen       int // connection generation; stale pump events are ignored

	connCancel     context.CancelFunc
	reconnectTimer *time.Timer
	closed         bool
}

// NewManager builds a manager; it does not dial until Connect.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	dial := cfg.Dial
	if dial == nil {
		dial = DialWebsocket
	}
	m := &Manager{
		url:               cfg.URL,
		dial:              dial,
		logger:            logger,
		heartbeatInterval: cfg.HeartbeatInterval,
		reconnectBase:     cfg.ReconnectBase,
		maxAttempts:       cfg.MaxReconnectAttempts,
		onFrame:           cfg.OnFrame,
		onState:           cfg.OnState,
		state:             StateDisconnected,
	}
	if m.heartbeatInterval <= 0 {
		m.heartbeatInterval = DefaultHeartbeatInterval
	}
	if m.reconnectBase <= 0 {
		m.reconnectBase = DefaultReconnectBase
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = DefaultMaxReconnectAttempts
	}
	return m
}

// DialWebsocket is the production dialer.
func DialWebsocket(ctx context.Context, url string) (Transport, error) {
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{"room"},
	})
	if err != nil {
		return nil, err
	}
	return &wsTransport{c: c}, nil
}

// State returns the current derived state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials the room URL and blocks until the transport is open or the
// dial fails. A failed initial connect does not start the reconnect loop;
// that is reserved for unexpected closes of an established connection.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.state = StateConnecting
	m.mu.Unlock()
	m.emitState(StateConnecting, nil)

	t, err := m.dial(ctx, m.url)
	if err != nil {
		m.mu.Lock()
		if !m.closed {
			m.state = StateDisconnected
		}
		m.mu.Unlock()
		m.emitState(StateDisconnected, err)
		return err
	}
	return m.install(t)
}

// install adopts an open transport: resets the attempt counter, starts the
// read pump and heartbeat, and publishes StateConnected.
func (m *Manager) install(t Transport) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = t.Close(websocket.StatusNormalClosure, "client closed during dial")
		return ErrClosed
	}
	m.transport = t
	m.attempts = 0
	m.gen++
	gen := m.gen
	m.state = StateConnected
	connCtx, cancel := context.WithCancel(context.Background())
	m.connCancel = cancel
	m.mu.Unlock()

	go m.readPump(connCtx, t, gen)
	go m.heartbeat(connCtx)

	m.emitState(StateConnected, nil)
	return nil
}

// Send writes a frame on the open transport. Not open means a logged warning
// and nothing else: no queueing, no error, per the fire-and-forget contract.
func (m *Manager) Send(data []byte) {
	m.mu.Lock()
	t := m.transport
	open := m.state == StateConnected && t != nil
	m.mu.Unlock()
	if !open {
		m.logger.Warnf("send dropped, transport not open: %s", truncate(data, 120))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := t.Write(ctx, data); err != nil {
		// A failed write means the connection is going down; the read pump
		// observes the close and drives reconnection.
		m.logger.Warnf("write failed: %v", err)
	}
}

// Close performs the idempotent ordered teardown: heartbeat stopped, pending
// reconnect timer stopped, transport closed, handlers cleared.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	t := m.transport
	m.transport = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if t != nil {
		_ = t.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	m.emitState(StateDisconnected, nil)

	m.mu.Lock()
	m.onFrame = nil
	m.onState = nil
	m.mu.Unlock()
}

// readPump delivers inbound frames in receipt order until the transport
// fails, then hands the close to the reconnect policy.
func (m *Manager) readPump(ctx context.Context, t Transport, gen int) {
	for {
		data, err := t.Read(ctx)
		if err != nil {
			m.handleClose(gen, err)
			return
		}
		m.mu.Lock()
		stale := m.gen != gen || m.closed
		onFrame := m.onFrame
		m.mu.Unlock()
		if stale {
			return
		}
		if onFrame != nil {
			onFrame(data)
		}
	}
}

// heartbeat emits a ping frame with the client timestamp on a fixed
// interval. Liveness only; its absence never tears the connection down.
func (m *Manager) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Send(protocol.Ping(time.Now().UnixMilli()))
		}
	}
}

// handleClose reacts to the read pump ending. Explicit Close and stale
// generations are ignored; terminal close codes park the manager; anything
// else schedules a backoff reconnect.
func (m *Manager) handleClose(gen int, err error) {
	m.mu.Lock()
	if m.closed || m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	m.transport = nil
	m.state = StateDisconnected
	terminal := protocol.TerminalClose(websocket.CloseStatus(err))
	if !terminal {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()

	if terminal {
		m.logger.Infof("connection closed (%v), no reconnect", err)
	} else {
		m.logger.Warnf("connection lost: %v", err)
	}
	m.emitState(StateDisconnected, err)
}

// scheduleReconnectLocked arms the backoff timer. Caller holds m.mu.
// Delay doubles per attempt: base, 2*base, 4*base, ... up to maxAttempts,
// after which the manager stays parked with no further transitions.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.maxAttempts {
		m.logger.Warnf("reconnect attempts exhausted after %d tries", m.attempts)
		return
	}
	m.attempts++
	delay := backoffDelay(m.reconnectBase, m.attempts)
	m.logger.Infof("reconnect attempt %d/%d in %s", m.attempts, m.maxAttempts, delay)
	m.reconnectTimer = time.AfterFunc(delay, m.retry)
}

// retry is the reconnect timer callback.
func (m *Manager) retry() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	m.state = StateConnecting
	m.mu.Unlock()
	m.emitState(StateConnecting, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t, err := m.dial(ctx, m.url)
	cancel()
	if err != nil {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.state = StateDisconnected
		m.scheduleReconnectLocked()
		m.mu.Unlock()
		m.emitState(StateDisconnected, err)
		return
	}
	_ = m.install(t)
}

// emitState fans the transition out to the registered observer, if any.
func (m *Manager) emitState(s State, err error) {
	m.mu.Lock()
	onState := m.onState
	m.mu.Unlock()
	if onState != nil {
		onState(s, err)
	}
}

// backoffDelay computes the delay before the given (1-based) attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
