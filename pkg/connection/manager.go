// Package connection manages the persistent WebSocket link to the
// animation server: lifecycle, bounded reconnection backoff and
// latency/health measurement.
package connection

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/poblanc/go-avatar/pkg/protocol"
)

// State represents the transport lifecycle state.
type State int

const (
	// StateDisconnected means no transport is open.
	StateDisconnected State = iota

	// StateConnecting means a dial is in progress.
	StateConnecting

	// StateConnected means the transport is open.
	StateConnected

	// StateReconnecting means a reconnect attempt is scheduled.
	StateReconnecting

	// StateClosed means the connection was intentionally shut down.
	// Terminal until a fresh Connect.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of the connection.
type Status struct {
	State             State         `json:"state"`
	ClientID          string        `json:"client_id"`
	ReconnectAttempts int           `json:"reconnect_attempts"`
	AverageLatency    time.Duration `json:"average_latency"`
}

// Manager owns the WebSocket handle. No other component writes to the
// transport directly.
type Manager struct {
	config *Config
	logger *slog.Logger

	mu          sync.Mutex
	writeMu     sync.Mutex
	state       State
	conn        *websocket.Conn
	done        chan struct{}
	attempts    int
	consecutive int
	clientID    string
	intentional bool
	latency     *latencyRing
	pending     map[int64]time.Time
	reconnect   *time.Timer

	// Callbacks. Set before Connect.

	// OnMessage receives every inbound payload. A non-nil return counts
	// toward the consecutive-error threshold; nil resets it.
	OnMessage func(data []byte) error

	// OnStateChange fires on every lifecycle transition.
	OnStateChange func(State)

	// OnReconnectFailed fires once when the reconnection budget is spent.
	OnReconnectFailed func(error)

	// OnLatency fires with each measured round trip and the running average.
	OnLatency func(sample, average time.Duration)
}

// NewManager creates a connection manager for the given endpoint.
func NewManager(opts ...Option) (*Manager, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		config:  cfg,
		logger:  cfg.Logger.With("component", "connection"),
		state:   StateDisconnected,
		latency: newLatencyRing(cfg.LatencyWindow),
		pending: make(map[int64]time.Time),
	}, nil
}

// Connect opens the transport. It is idempotent: a no-op while already
// connecting or connected. A fresh Connect restarts the cycle from the
// Closed state.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.stopReconnectLocked()
	m.intentional = false
	m.attempts = 0
	m.state = StateConnecting
	m.mu.Unlock()
	m.notifyState(StateConnecting)

	return m.dial()
}

// dial performs one connect attempt. Failures enter the reconnect path.
func (m *Manager) dial() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.HandshakeTimeout,
	}

	conn, _, err := dialer.Dial(m.config.URL, nil)
	if err != nil {
		terr := &TransportError{Op: "dial", Cause: err}
		m.logger.Error("dial failed", "url", m.config.URL, "error", err)
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		m.notifyState(StateDisconnected)
		m.scheduleReconnect()
		return terr
	}

	done := make(chan struct{})

	m.mu.Lock()
	m.conn = conn
	m.done = done
	m.attempts = 0
	m.consecutive = 0
	m.state = StateConnected
	m.mu.Unlock()
	m.notifyState(StateConnected)

	m.logger.Info("connected", "url", m.config.URL)

	go m.readLoop(conn)
	go m.pingLoop(done)
	go m.cleanupLoop(done)

	return nil
}

// Send marshals and writes a message. Returns false, silently, when the
// transport is not connected.
func (m *Manager) Send(v any) bool {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return false
	}

	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Error("marshal failed", "error", err)
		return false
	}

	m.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(m.config.WriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	m.writeMu.Unlock()

	if err != nil {
		m.logger.Error("write failed", "error", err)
		m.handleDisconnect(conn, false)
		return false
	}
	return true
}

// Disconnect closes the transport intentionally (close code 1000), cancels
// any pending reconnect and enters the terminal Closed state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.intentional = true
	m.stopReconnectLocked()
	conn := m.conn
	m.conn = nil
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	m.state = StateClosed
	m.mu.Unlock()
	m.notifyState(StateClosed)

	if conn != nil {
		m.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		conn.Close()
	}

	m.logger.Info("disconnected")
}

// readLoop delivers inbound payloads until the transport fails.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// Close code 1000 is an intentional server-side shutdown.
			remoteClose := websocket.IsCloseError(err, websocket.CloseNormalClosure)
			if !remoteClose {
				m.logger.Warn("read failed", "error", err)
			}
			m.handleDisconnect(conn, remoteClose)
			return
		}
		m.dispatch(data)
	}
}

// dispatch routes one payload through OnMessage and maintains the
// consecutive-error counter.
func (m *Manager) dispatch(data []byte) {
	if m.OnMessage == nil {
		return
	}
	if err := m.OnMessage(data); err != nil {
		m.logger.Warn("message rejected", "error", err)
		m.RecordProtocolError()
		return
	}
	m.ResetProtocolErrors()
}

// RecordProtocolError increments the consecutive validation-failure
// counter. Exceeding the threshold forces a reconnect even though the
// transport itself appears open.
func (m *Manager) RecordProtocolError() {
	m.mu.Lock()
	m.consecutive++
	count := m.consecutive
	threshold := m.config.MaxConsecutiveErrors
	conn := m.conn
	m.mu.Unlock()

	if count > threshold && conn != nil {
		m.logger.Warn("logical channel broken, forcing reconnect",
			"consecutive_errors", count)
		// Closing the transport routes through the normal disconnect path.
		conn.Close()
	}
}

// ResetProtocolErrors clears the consecutive validation-failure counter.
func (m *Manager) ResetProtocolErrors() {
	m.mu.Lock()
	m.consecutive = 0
	m.mu.Unlock()
}

// ConsecutiveErrors returns the current consecutive validation-failure
// count.
func (m *Manager) ConsecutiveErrors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutive
}

// handleDisconnect tears down a failed transport and, unless the close was
// intentional on either side, schedules reconnection. The conn argument
// keeps a stale read loop from tearing down a newer transport.
func (m *Manager) handleDisconnect(conn *websocket.Conn, remoteClose bool) {
	m.mu.Lock()
	if m.state == StateClosed || m.conn == nil || m.conn != conn {
		// Already torn down by Disconnect or superseded by a reconnect.
		m.mu.Unlock()
		return
	}
	m.conn.Close()
	m.conn = nil
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	m.state = StateDisconnected
	m.mu.Unlock()
	m.notifyState(StateDisconnected)

	if remoteClose {
		m.logger.Info("connection closed by server")
		return
	}
	m.scheduleReconnect()
}

// scheduleReconnect arms the backoff timer for the next attempt, or
// surfaces terminal failure once the budget is spent.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.intentional || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempt := m.attempts
	if attempt > m.config.MaxReconnectAttempts {
		cb := m.OnReconnectFailed
		m.mu.Unlock()
		m.logger.Error("giving up", "attempts", attempt-1)
		if cb != nil {
			cb(ErrMaxReconnectExceeded)
		}
		return
	}

	delay := backoffDelay(attempt, m.config.ReconnectBaseDelay, m.config.ReconnectMaxDelay)
	m.state = StateReconnecting
	m.reconnect = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.intentional || m.state != StateReconnecting {
			m.mu.Unlock()
			return
		}
		m.state = StateConnecting
		m.mu.Unlock()
		m.notifyState(StateConnecting)
		m.dial()
	})
	m.mu.Unlock()
	m.notifyState(StateReconnecting)

	m.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
}

// backoffDelay computes the exponential delay for the given attempt,
// starting at base for attempt 1 and doubling up to the cap.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// stopReconnectLocked cancels a pending reconnect attempt. Caller holds mu.
func (m *Manager) stopReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

// pingLoop sends a timestamped ping every interval while connected.
func (m *Manager) pingLoop(done chan struct{}) {
	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.sendPing()
		}
	}
}

// sendPing issues one latency probe and records it as pending.
func (m *Manager) sendPing() {
	ping := protocol.NewPing(m.ClientID())

	m.mu.Lock()
	m.pending[ping.Timestamp] = time.Now()
	m.mu.Unlock()

	if !m.Send(ping) {
		m.mu.Lock()
		delete(m.pending, ping.Timestamp)
		m.mu.Unlock()
	}
}

// HandlePong matches a pong to its pending ping and records the round
// trip. Unmatched pongs are ignored.
func (m *Manager) HandlePong(p *protocol.Pong) {
	m.mu.Lock()
	sent, ok := m.pending[p.Timestamp]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.pending, p.Timestamp)
	rtt := time.Since(sent)
	m.latency.Add(rtt, time.Now())
	avg := m.latency.Average()
	cb := m.OnLatency
	m.mu.Unlock()

	if cb != nil {
		cb(rtt, avg)
	}
}

// cleanupLoop periodically drops stale latency samples and expired
// pending pings.
func (m *Manager) cleanupLoop(done chan struct{}) {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			now := time.Now()
			cutoff := now.Add(-m.config.StaleSampleAge)
			m.mu.Lock()
			m.latency.Prune(cutoff)
			for ts, sent := range m.pending {
				if sent.Before(cutoff) {
					delete(m.pending, ts)
				}
			}
			m.mu.Unlock()
		}
	}
}

// SetClientID records the identifier assigned by the server.
func (m *Manager) SetClientID(id string) {
	m.mu.Lock()
	m.clientID = id
	m.mu.Unlock()
}

// ClientID returns the identifier assigned by the server.
func (m *Manager) ClientID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientID
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the transport is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// AverageLatency returns the mean of buffered round-trip samples.
func (m *Manager) AverageLatency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latency.Average()
}

// Status returns a point-in-time snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:             m.state,
		ClientID:          m.clientID,
		ReconnectAttempts: m.attempts,
		AverageLatency:    m.latency.Average(),
	}
}

// notifyState invokes the state-change callback outside the lock.
func (m *Manager) notifyState(s State) {
	if m.OnStateChange != nil {
		m.OnStateChange(s)
	}
}
