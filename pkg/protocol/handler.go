package protocol

import (
	"log/slog"
	"sync"
)

// Sender hands outbound messages to the transport. Send returns false when
// the transport is not connected; the message is dropped silently.
type Sender interface {
	Send(v any) bool
}

// Handler validates inbound payloads and routes each recognized message
// type to exactly one callback. Unrecognized but well-formed types are
// logged and ignored.
type Handler struct {
	sender Sender
	logger *slog.Logger

	mu       sync.RWMutex
	clientID string

	onConnectionEstablished func(*ConnectionEstablished)
	onAnimationEvent        func(*AnimationEvent)
	onHeartbeat             func(*Heartbeat)
	onPong                  func(*Pong)
	onSyncTiming            func(*TimingSyncData)
}

// NewHandler creates a protocol handler that sends through the given
// transport.
func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sender: sender,
		logger: logger.With("component", "protocol"),
	}
}

// OnConnectionEstablished sets the callback for the server welcome message.
func (h *Handler) OnConnectionEstablished(fn func(*ConnectionEstablished)) {
	h.mu.Lock()
	h.onConnectionEstablished = fn
	h.mu.Unlock()
}

// OnAnimationEvent sets the callback for validated animation events.
func (h *Handler) OnAnimationEvent(fn func(*AnimationEvent)) {
	h.mu.Lock()
	h.onAnimationEvent = fn
	h.mu.Unlock()
}

// OnHeartbeat sets the callback for server heartbeats. The handler always
// acknowledges heartbeats itself before invoking the callback.
func (h *Handler) OnHeartbeat(fn func(*Heartbeat)) {
	h.mu.Lock()
	h.onHeartbeat = fn
	h.mu.Unlock()
}

// OnPong sets the callback for ping replies.
func (h *Handler) OnPong(fn func(*Pong)) {
	h.mu.Lock()
	h.onPong = fn
	h.mu.Unlock()
}

// OnSyncTiming sets the callback for timing synchronization data.
func (h *Handler) OnSyncTiming(fn func(*TimingSyncData)) {
	h.mu.Lock()
	h.onSyncTiming = fn
	h.mu.Unlock()
}

// ClientID returns the identifier assigned by the server, or empty before
// the first connection_established message.
func (h *Handler) ClientID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientID
}

// HandleMessage validates one inbound payload and dispatches it. A non-nil
// return means the payload failed structural validation; the caller counts
// it toward the consecutive-error threshold.
func (h *Handler) HandleMessage(data []byte) error {
	env, err := ParseEnvelope(data)
	if err != nil {
		return err
	}

	switch env.Type {
	case TypeConnectionEstablished:
		var msg ConnectionEstablished
		if err := decodeInto(data, &msg, env.Type); err != nil {
			return err
		}
		h.mu.Lock()
		h.clientID = msg.ClientID
		cb := h.onConnectionEstablished
		h.mu.Unlock()
		h.logger.Info("connection established", "client_id", msg.ClientID)
		if cb != nil {
			cb(&msg)
		}
		return nil

	case TypeAnimationEvent:
		event, err := parseAnimationEvent(data)
		if err != nil {
			return err
		}
		h.mu.RLock()
		cb := h.onAnimationEvent
		h.mu.RUnlock()
		if cb != nil {
			cb(event)
		}
		return nil

	case TypeHeartbeat:
		var msg Heartbeat
		if err := decodeInto(data, &msg, env.Type); err != nil {
			return err
		}
		h.sender.Send(NewHeartbeatResponse(h.ClientID()))
		h.mu.RLock()
		cb := h.onHeartbeat
		h.mu.RUnlock()
		if cb != nil {
			cb(&msg)
		}
		return nil

	case TypePong:
		var msg Pong
		if err := decodeInto(data, &msg, env.Type); err != nil {
			return err
		}
		h.mu.RLock()
		cb := h.onPong
		h.mu.RUnlock()
		if cb != nil {
			cb(&msg)
		}
		return nil

	case TypeSyncTiming:
		var msg SyncTimingMessage
		if err := decodeInto(data, &msg, env.Type); err != nil {
			return err
		}
		h.mu.RLock()
		cb := h.onSyncTiming
		h.mu.RUnlock()
		if cb != nil {
			cb(&msg.Data)
		}
		return nil

	default:
		// Well-formed but unrecognized. Not a protocol error.
		h.logger.Debug("ignoring unrecognized message type", "type", env.Type)
		return nil
	}
}

// Complete emits an animation_complete notification for the given sequence.
// Events without a sequence ID produce no notification.
func (h *Handler) Complete(sequenceID string) {
	if sequenceID == "" {
		return
	}
	h.sender.Send(NewAnimationComplete(sequenceID, h.ClientID()))
}

// SendLatency reports a round-trip measurement back to the server.
func (h *Handler) SendLatency(latencyMs, averageMs float64) {
	h.sender.Send(NewLatencyMeasurement(latencyMs, averageMs, h.ClientID()))
}

// SendParameterFeedback pushes a parameter snapshot to the server.
func (h *Handler) SendParameterFeedback(parameters map[string]float64) {
	h.sender.Send(NewParameterFeedback(parameters, h.ClientID()))
}

// RequestAnimation asks the server to schedule an animation.
func (h *Handler) RequestAnimation(data RequestAnimationData) bool {
	return h.sender.Send(NewRequestAnimation(data, h.ClientID()))
}

// RequestTTSSync asks the server to coordinate a TTS-synchronized animation.
func (h *Handler) RequestTTSSync(data RequestTTSSyncData) bool {
	return h.sender.Send(NewRequestTTSSync(data, h.ClientID()))
}
