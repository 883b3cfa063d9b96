// Package protocol defines the WebSocket message types for avatar-server
// communication and validates inbound payloads before they reach the
// animation layer.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → Client messages
	TypeConnectionEstablished MessageType = "connection_established"
	TypeAnimationEvent        MessageType = "animation_event"
	TypeHeartbeat             MessageType = "heartbeat"
	TypePong                  MessageType = "pong"
	TypeSyncTiming            MessageType = "sync_timing"

	// Client → Server messages
	TypeHeartbeatResponse  MessageType = "heartbeat_response"
	TypePing               MessageType = "ping"
	TypeAnimationComplete  MessageType = "animation_complete"
	TypeParameterFeedback  MessageType = "parameter_feedback"
	TypeLatencyMeasurement MessageType = "latency_measurement"
	TypeRequestAnimation   MessageType = "request_animation"
	TypeRequestTTSSync     MessageType = "request_tts_sync"
)

// EventType identifies an animation event kind carried by animation_event
// messages.
type EventType string

const (
	EventExpressionChange EventType = "expression_change"
	EventMouthSyncStart   EventType = "mouth_sync_start"
	EventMouthSyncUpdate  EventType = "mouth_sync_update"
	EventMouthSyncStop    EventType = "mouth_sync_stop"
	EventParameterUpdate  EventType = "parameter_update"
	EventSyncTiming       EventType = "sync_timing"
)

var knownEventTypes = map[EventType]bool{
	EventExpressionChange: true,
	EventMouthSyncStart:   true,
	EventMouthSyncUpdate:  true,
	EventMouthSyncStop:    true,
	EventParameterUpdate:  true,
	EventSyncTiming:       true,
}

// Valid reports whether the event type is one of the recognized kinds.
func (e EventType) Valid() bool {
	return knownEventTypes[e]
}

// Envelope is the minimal wrapper shared by all wire messages. Inbound
// payloads are probed through it before full decoding.
type Envelope struct {
	Type MessageType `json:"type"`
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// ConnectionEstablished is the server's welcome message carrying the
// assigned client ID.
type ConnectionEstablished struct {
	Type             MessageType     `json:"type"`
	ClientID         string          `json:"client_id"`
	CurrentAnimation *AnimationEvent `json:"current_animation,omitempty"`
	QueueLength      int             `json:"queue_length,omitempty"`
}

// AnimationEventMessage wraps a single animation event.
type AnimationEventMessage struct {
	Type  MessageType    `json:"type"`
	Event AnimationEvent `json:"event"`
}

// AnimationEvent describes one animation instruction from the server.
// Consumed exactly once by the scheduler; never mutated after creation.
type AnimationEvent struct {
	EventType  EventType       `json:"event_type"`
	Timestamp  float64         `json:"timestamp"` // Unix seconds
	Data       json.RawMessage `json:"data"`
	SequenceID string          `json:"sequence_id,omitempty"`
	Duration   float64         `json:"duration,omitempty"`
	Priority   int             `json:"priority,omitempty"`
}

// ParseData unmarshals the event data into the provided struct.
func (e *AnimationEvent) ParseData(v any) error {
	if e.Data == nil {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// ExpressionChangeData is the payload of an expression_change event.
type ExpressionChangeData struct {
	Expression string  `json:"expression"`
	Intensity  float64 `json:"intensity"`
	Duration   float64 `json:"duration"`
}

// MouthSyncUpdateData is the payload of a mouth_sync_update event.
type MouthSyncUpdateData struct {
	MouthOpen  float64 `json:"mouth_open"`
	MouthForm  float64 `json:"mouth_form"`
	AudioLevel float64 `json:"audio_level"`
}

// ParameterUpdateData is the payload of a parameter_update event.
type ParameterUpdateData struct {
	Parameters map[string]float64 `json:"parameters"`
	Immediate  bool               `json:"immediate,omitempty"`
}

// Heartbeat is the server's periodic liveness message.
type Heartbeat struct {
	Type             MessageType `json:"type"`
	Timestamp        float64     `json:"timestamp,omitempty"`
	QueueLength      int         `json:"queue_length"`
	CurrentAnimation string      `json:"current_animation,omitempty"`
}

// Pong is the server's reply to a client ping. Timestamp echoes the
// value the client sent, which is how replies are matched to pings.
type Pong struct {
	Type            MessageType `json:"type"`
	Timestamp       int64       `json:"timestamp"` // Unix milliseconds, echoed
	ServerTimestamp float64     `json:"server_timestamp,omitempty"`
}

// SyncTimingMessage carries audio-animation timing coordination data.
type SyncTimingMessage struct {
	Type MessageType    `json:"type"`
	Data TimingSyncData `json:"data"`
}

// TimingSyncData aligns animation playback with TTS audio.
type TimingSyncData struct {
	AudioStartTime     float64 `json:"audio_start_time"`
	AudioDuration      float64 `json:"audio_duration"`
	AnimationStartTime float64 `json:"animation_start_time"`
	TTSProcessingDelay float64 `json:"tts_processing_delay"`
	NetworkLatency     float64 `json:"network_latency,omitempty"`
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// HeartbeatResponse acknowledges a server heartbeat.
type HeartbeatResponse struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"` // Unix milliseconds
	ClientID  string      `json:"client_id"`
}

// Ping is a client-initiated latency probe.
type Ping struct {
	Type      MessageType `json:"type"`
	Timestamp int64       `json:"timestamp"` // Unix milliseconds
	ClientID  string      `json:"client_id"`
}

// AnimationComplete notifies the server that a sequenced animation finished.
type AnimationComplete struct {
	Type       MessageType `json:"type"`
	SequenceID string      `json:"sequence_id"`
	Timestamp  int64       `json:"timestamp"`
	ClientID   string      `json:"client_id"`
}

// ParameterFeedback reports the current parameter values to the server.
type ParameterFeedback struct {
	Type       MessageType        `json:"type"`
	Parameters map[string]float64 `json:"parameters"`
	Timestamp  int64              `json:"timestamp"`
	ClientID   string             `json:"client_id"`
}

// LatencyMeasurement reports a round-trip sample and the running average.
type LatencyMeasurement struct {
	Type           MessageType `json:"type"`
	Latency        float64     `json:"latency"` // milliseconds
	AverageLatency float64     `json:"average_latency"`
	ClientID       string      `json:"client_id"`
}

// RequestAnimation asks the server to schedule an animation.
type RequestAnimation struct {
	Type      MessageType          `json:"type"`
	Data      RequestAnimationData `json:"data"`
	ClientID  string               `json:"client_id"`
	Timestamp int64                `json:"timestamp"`
}

// RequestAnimationData is the body of a request_animation message.
// RequestID lets the client correlate the server's eventual animation_event
// with the request that caused it.
type RequestAnimationData struct {
	Expression string  `json:"expression"`
	Intensity  float64 `json:"intensity"`
	Duration   float64 `json:"duration"`
	Priority   int     `json:"priority"`
	RequestID  string  `json:"request_id,omitempty"`
}

// RequestTTSSync asks the server to coordinate a TTS-synchronized animation.
type RequestTTSSync struct {
	Type      MessageType        `json:"type"`
	Data      RequestTTSSyncData `json:"data"`
	ClientID  string             `json:"client_id"`
	Timestamp int64              `json:"timestamp"`
}

// RequestTTSSyncData is the body of a request_tts_sync message.
type RequestTTSSyncData struct {
	Text          string  `json:"text"`
	Expression    string  `json:"expression"`
	AudioDuration float64 `json:"audio_duration,omitempty"`
	RequestID     string  `json:"request_id,omitempty"`
}

// =============================================================================
// Inbound parsing and validation
// =============================================================================

// ParseEnvelope probes raw bytes for the required string type field.
// Anything that is not a JSON object with a string type is a protocol error.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: "malformed envelope", Cause: err}
	}
	if env.Type == "" {
		return nil, &ProtocolError{Reason: "missing type field", Cause: ErrMissingType}
	}
	return &env, nil
}

// rawAnimationEvent mirrors AnimationEvent with optional-field detection so
// missing required fields are distinguishable from zero values.
type rawAnimationEvent struct {
	EventType  json.RawMessage `json:"event_type"`
	Timestamp  *float64        `json:"timestamp"`
	Data       json.RawMessage `json:"data"`
	SequenceID string          `json:"sequence_id"`
	Duration   float64         `json:"duration"`
	Priority   int             `json:"priority"`
}

// parseAnimationEvent validates the nested event object of an
// animation_event message. event_type, timestamp and data are required; a
// structured event_type must carry type and value sub-fields.
func parseAnimationEvent(data []byte) (*AnimationEvent, error) {
	var msg struct {
		Event *rawAnimationEvent `json:"event"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &ProtocolError{Reason: "malformed animation_event", Cause: err}
	}
	if msg.Event == nil {
		return nil, &ProtocolError{Reason: "animation_event missing event object", Cause: ErrMalformedEvent}
	}
	raw := msg.Event
	if raw.EventType == nil {
		return nil, &ProtocolError{Reason: "event missing event_type", Cause: ErrMalformedEvent}
	}
	if raw.Timestamp == nil {
		return nil, &ProtocolError{Reason: "event missing timestamp", Cause: ErrMalformedEvent}
	}
	if raw.Data == nil {
		return nil, &ProtocolError{Reason: "event missing data", Cause: ErrMalformedEvent}
	}

	eventType, err := decodeEventType(raw.EventType)
	if err != nil {
		return nil, err
	}

	return &AnimationEvent{
		EventType:  eventType,
		Timestamp:  *raw.Timestamp,
		Data:       raw.Data,
		SequenceID: raw.SequenceID,
		Duration:   raw.Duration,
		Priority:   raw.Priority,
	}, nil
}

// decodeEventType accepts either a plain string or a structured object with
// type and value sub-fields.
func decodeEventType(raw json.RawMessage) (EventType, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return EventType(s), nil
	}

	var structured struct {
		Type  *string         `json:"type"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &structured); err != nil {
		return "", &ProtocolError{Reason: "malformed event_type", Cause: err}
	}
	if structured.Type == nil || structured.Value == nil {
		return "", &ProtocolError{Reason: "structured event_type missing type or value", Cause: ErrMalformedEvent}
	}
	return EventType(*structured.Type), nil
}

// decodeInto unmarshals a full message body, wrapping failures as protocol
// errors.
func decodeInto(data []byte, v any, kind MessageType) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("malformed %s message", kind), Cause: err}
	}
	return nil
}
