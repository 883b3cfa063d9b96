package connection

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/poblanc/go-avatar/pkg/protocol"
)

func TestBackoffDelay(t *testing.T) {
	base := 1 * time.Second
	max := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		got := backoffDelay(tt.attempt, base, max)
		if got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{StateClosed, "closed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNewManagerRequiresURL(t *testing.T) {
	if _, err := NewManager(); !errors.Is(err, ErrNoURL) {
		t.Errorf("NewManager() error = %v, want ErrNoURL", err)
	}
}

func TestSendNotConnected(t *testing.T) {
	m, err := NewManager(WithURL("ws://localhost:1"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.Send(protocol.NewPing("c1")) {
		t.Error("Send succeeded on a disconnected manager")
	}
}

func TestProtocolErrorCounter(t *testing.T) {
	m, err := NewManager(WithURL("ws://localhost:1"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	for i := 1; i <= 3; i++ {
		m.RecordProtocolError()
		if got := m.ConsecutiveErrors(); got != i {
			t.Fatalf("after %d errors ConsecutiveErrors() = %d", i, got)
		}
	}

	m.ResetProtocolErrors()
	if got := m.ConsecutiveErrors(); got != 0 {
		t.Errorf("after reset ConsecutiveErrors() = %d, want 0", got)
	}
}

func TestDispatchResetsCounter(t *testing.T) {
	m, err := NewManager(WithURL("ws://localhost:1"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	m.OnMessage = func(data []byte) error {
		if string(data) == "bad" {
			return errors.New("rejected")
		}
		return nil
	}

	m.dispatch([]byte("bad"))
	m.dispatch([]byte("bad"))
	if got := m.ConsecutiveErrors(); got != 2 {
		t.Fatalf("ConsecutiveErrors() = %d, want 2", got)
	}

	m.dispatch([]byte("good"))
	if got := m.ConsecutiveErrors(); got != 0 {
		t.Errorf("valid message did not reset counter, got %d", got)
	}
}

func TestHandlePongUnmatched(t *testing.T) {
	m, err := NewManager(WithURL("ws://localhost:1"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	m.HandlePong(&protocol.Pong{Timestamp: 12345})
	if got := m.AverageLatency(); got != 0 {
		t.Errorf("unmatched pong recorded a sample, average = %v", got)
	}
}

func TestHandlePongRecordsLatency(t *testing.T) {
	m, err := NewManager(WithURL("ws://localhost:1"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var sample, average time.Duration
	m.OnLatency = func(s, a time.Duration) {
		sample, average = s, a
	}

	ts := time.Now().UnixMilli()
	m.mu.Lock()
	m.pending[ts] = time.Now().Add(-40 * time.Millisecond)
	m.mu.Unlock()

	m.HandlePong(&protocol.Pong{Timestamp: ts})

	if sample < 40*time.Millisecond {
		t.Errorf("sample = %v, want >= 40ms", sample)
	}
	if average == 0 {
		t.Error("average not computed after matched pong")
	}
	if got := m.AverageLatency(); got == 0 {
		t.Error("AverageLatency() = 0 after matched pong")
	}
}

func TestLatencyRingEviction(t *testing.T) {
	r := newLatencyRing(3)
	now := time.Now()

	for i := 1; i <= 4; i++ {
		r.Add(time.Duration(i)*time.Millisecond, now)
	}

	if got := r.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	// 1ms was evicted, leaving 2,3,4.
	want := 3 * time.Millisecond
	if got := r.Average(); got != want {
		t.Errorf("Average() = %v, want %v", got, want)
	}
}

func TestLatencyRingPrune(t *testing.T) {
	r := newLatencyRing(5)
	old := time.Now().Add(-10 * time.Minute)
	fresh := time.Now()

	r.Add(100*time.Millisecond, old)
	r.Add(20*time.Millisecond, fresh)
	r.Add(40*time.Millisecond, fresh)

	r.Prune(time.Now().Add(-5 * time.Minute))

	if got := r.Len(); got != 2 {
		t.Fatalf("Len() after prune = %d, want 2", got)
	}
	if got := r.Average(); got != 30*time.Millisecond {
		t.Errorf("Average() after prune = %v, want 30ms", got)
	}
}

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectRoundTrip(t *testing.T) {
	received := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"connection_established","client_id":"c1","queue_length":0}`))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(data)

		// Hold the link open until the client closes.
		conn.ReadMessage()
	}))
	defer srv.Close()

	m, err := NewManager(WithURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	inbound := make(chan []byte, 1)
	m.OnMessage = func(data []byte) error {
		inbound <- data
		return nil
	}

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Disconnect()

	if !m.IsConnected() {
		t.Fatal("manager not connected after Connect")
	}

	select {
	case data := <-inbound:
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			t.Fatalf("ParseEnvelope: %v", err)
		}
		if env.Type != protocol.TypeConnectionEstablished {
			t.Errorf("inbound type = %q", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}

	if !m.Send(protocol.NewPing("c1")) {
		t.Fatal("Send failed on connected manager")
	}

	select {
	case data := <-received:
		if !strings.Contains(data, `"type":"ping"`) {
			t.Errorf("server received %q, want a ping", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server receive")
	}
}

func TestConnectIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	m, err := NewManager(WithURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Disconnect()

	if err := m.Connect(); err != nil {
		t.Errorf("second Connect returned %v, want nil no-op", err)
	}
	if got := m.State(); got != StateConnected {
		t.Errorf("State() = %v after double Connect", got)
	}
}

func TestDisconnectIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	m, err := NewManager(WithURL(wsURL(srv)))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	m.Disconnect()

	if got := m.State(); got != StateClosed {
		t.Fatalf("State() = %v after Disconnect, want closed", got)
	}

	// No reconnect may fire after an intentional close.
	time.Sleep(100 * time.Millisecond)
	if got := m.State(); got != StateClosed {
		t.Errorf("State() = %v, reconnect ran after Disconnect", got)
	}
	if m.Send(protocol.NewPing("c1")) {
		t.Error("Send succeeded after Disconnect")
	}
}

func TestReconnectAfterServerDrop(t *testing.T) {
	var mu sync.Mutex
	dials := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			// Abrupt drop, no close handshake.
			conn.Close()
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	m, err := NewManager(
		WithURL(wsURL(srv)),
		WithReconnectBackoff(20*time.Millisecond, 100*time.Millisecond, 5),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Disconnect()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := dials
		mu.Unlock()
		if n >= 2 && m.IsConnected() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	n := dials
	mu.Unlock()
	t.Fatalf("manager did not reconnect, dials=%d state=%v", n, m.State())
}

func TestReconnectBudgetExhausted(t *testing.T) {
	m, err := NewManager(
		WithURL("ws://127.0.0.1:1"),
		WithReconnectBackoff(time.Millisecond, 5*time.Millisecond, 2),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	failed := make(chan error, 1)
	m.OnReconnectFailed = func(err error) {
		failed <- err
	}

	m.Connect()

	select {
	case err := <-failed:
		if !errors.Is(err, ErrMaxReconnectExceeded) {
			t.Errorf("OnReconnectFailed error = %v, want ErrMaxReconnectExceeded", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reconnect budget never exhausted")
	}
}
