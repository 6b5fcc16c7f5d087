// Package link maintains the outbound WebSocket connection to the
// robot-control server: connect, send, receive, close, and
// reconnect-after-delay.
package link

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/omochice/handstream/internal/observability"
	"github.com/omochice/handstream/pkg/wire"
)

// DefaultReconnectDelay is the fixed wait before retrying a failed or
// dropped connection.
const DefaultReconnectDelay = 5 * time.Second

// closeWriteTimeout bounds the close handshake write during shutdown.
const closeWriteTimeout = time.Second

// dialer abstracts the WebSocket dial so tests can observe and fail
// connection attempts. *websocket.Dialer satisfies it.
type dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Config holds the connection parameters for a Manager.
type Config struct {
	// URL is the ws:// or wss:// address of the server.
	URL string
	// ReconnectDelay overrides DefaultReconnectDelay when positive.
	ReconnectDelay time.Duration
}

// Manager owns the socket lifecycle for a single logical link. At most
// one live connection exists at a time; on any connect failure or
// unexpected disconnect it schedules exactly one reconnect attempt after
// the configured delay, indefinitely, so the host application stays
// alive regardless of server availability.
//
// Overlapping Send calls are serialized by a write mutex: at most one
// write is in flight, later callers wait for it.
type Manager struct {
	url            string
	reconnectDelay time.Duration
	dialer         dialer
	logger         zerolog.Logger
	dispatcher     *Dispatcher

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	cancel    context.CancelFunc
	reconnect *time.Timer
	closed    bool
	wg        sync.WaitGroup

	writeMu sync.Mutex
}

// NewManager creates a manager for the given server. It does not dial;
// call Connect to establish the link.
func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	lg := logger.With().Str("component", "link").Str("url", cfg.URL).Logger()
	return &Manager{
		url:            cfg.URL,
		reconnectDelay: delay,
		dialer:         websocket.DefaultDialer,
		logger:         lg,
		dispatcher:     NewDispatcher(logger),
	}
}

// Connect establishes the WebSocket connection and starts the receive
// loop. Calling it while a connection is established or in progress
// returns ErrAlreadyConnected without opening a duplicate socket. On
// failure the manager resets to Disconnected and schedules a reconnect.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, resp, err := m.dialer.DialContext(ctx, m.url, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		observability.RecordConnect("failure")
		m.logger.Warn().Err(err).Msg("failed to connect to server")
		m.mu.Lock()
		if !m.closed {
			m.state = StateDisconnected
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConnectFailed, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	rctx, cancel := context.WithCancel(context.Background())
	m.conn = conn
	m.cancel = cancel
	m.state = StateConnected
	m.wg.Add(1)
	go m.receiveLoop(rctx, conn)
	m.mu.Unlock()

	observability.RecordConnect("success")
	m.logger.Info().Msg("connected to server")
	return nil
}

// Send transmits data as a single text message. If the link is not
// Connected it returns ErrNotConnected and performs no I/O. A write
// failure drops the connection and schedules a reconnect.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	if m.state != StateConnected || m.conn == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	conn := m.conn
	m.mu.Unlock()

	m.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, data)
	m.writeMu.Unlock()
	if err != nil {
		observability.RecordSendError()
		m.logger.Warn().Err(err).Msg("failed to send message")
		m.dropConnection(conn)
		return fmt.Errorf("%w: %s", ErrSendFailed, err)
	}
	return nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected returns whether the link is established.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Subscribe registers a handler for inbound messages and returns its
// subscription ID.
func (m *Manager) Subscribe(fn Handler) string {
	return m.dispatcher.Subscribe(fn)
}

// Unsubscribe removes a previously registered handler.
func (m *Manager) Unsubscribe(id string) {
	m.dispatcher.Unsubscribe(id)
}

// Close shuts the link down: it cancels any pending reconnect, performs
// the close handshake if connected, unblocks the receive loop, and waits
// for background work to finish. Idempotent, and safe to call from any
// goroutine.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.state = StateClosing
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(closeWriteTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	m.wg.Wait()
	m.dispatcher.Close()

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()
	m.logger.Info().Msg("link closed")
}

// receiveLoop reads messages until the peer closes, the transport fails,
// or the connection is cancelled locally. Exactly one loop runs per
// connection.
func (m *Manager) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	defer m.wg.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled by Close or a send failure; that path
				// already handled the state transition.
				return
			}
			if isPeerClose(err) {
				m.logger.Info().Err(ErrPeerClosed).Msg("server closed the connection")
			} else {
				m.logger.Warn().Err(err).Msg("failed to receive message")
			}
			m.dropConnection(conn)
			return
		}
		observability.RecordInboundMessage()
		m.dispatcher.Dispatch(wire.Message{Text: string(data)})
	}
}

// dropConnection transitions to Disconnected after an unexpected
// failure on conn and schedules a reconnect. Stale calls for an already
// replaced connection are ignored.
func (m *Manager) dropConnection(conn *websocket.Conn) {
	m.mu.Lock()
	if m.closed || m.conn != conn {
		m.mu.Unlock()
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.conn = nil
	m.state = StateDisconnected
	m.scheduleReconnectLocked()
	m.mu.Unlock()
	_ = conn.Close()
}

// scheduleReconnectLocked arms the reconnect timer. Callers must hold
// m.mu. A pending timer and an active connection are mutually exclusive;
// if either exists this is a no-op.
func (m *Manager) scheduleReconnectLocked() {
	if m.closed || m.reconnect != nil ||
		m.state == StateConnected || m.state == StateConnecting {
		return
	}
	observability.RecordReconnectScheduled()
	m.logger.Info().Dur("delay", m.reconnectDelay).Msg("scheduling reconnect")
	m.reconnect = time.AfterFunc(m.reconnectDelay, m.retryConnect)
}

func (m *Manager) retryConnect() {
	m.mu.Lock()
	m.reconnect = nil
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}
	err := m.Connect(context.Background())
	if err != nil && !errors.Is(err, ErrAlreadyConnected) && !errors.Is(err, ErrClosed) {
		// Connect already scheduled the next attempt.
		m.logger.Warn().Err(err).Msg("reconnect attempt failed")
	}
}

func isPeerClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
