package protocol

import (
	"time"
)

// =============================================================================
// Helper functions for creating outbound messages
// =============================================================================

// NewHeartbeatResponse creates the acknowledgment for a server heartbeat.
func NewHeartbeatResponse(clientID string) HeartbeatResponse {
	return HeartbeatResponse{
		Type:      TypeHeartbeatResponse,
		Timestamp: time.Now().UnixMilli(),
		ClientID:  clientID,
	}
}

// NewPing creates a latency probe carrying the current timestamp.
func NewPing(clientID string) Ping {
	return Ping{
		Type:      TypePing,
		Timestamp: time.Now().UnixMilli(),
		ClientID:  clientID,
	}
}

// NewAnimationComplete creates a completion notification for a sequence.
func NewAnimationComplete(sequenceID, clientID string) AnimationComplete {
	return AnimationComplete{
		Type:       TypeAnimationComplete,
		SequenceID: sequenceID,
		Timestamp:  time.Now().UnixMilli(),
		ClientID:   clientID,
	}
}

// NewParameterFeedback creates a parameter snapshot message.
func NewParameterFeedback(parameters map[string]float64, clientID string) ParameterFeedback {
	return ParameterFeedback{
		Type:       TypeParameterFeedback,
		Parameters: parameters,
		Timestamp:  time.Now().UnixMilli(),
		ClientID:   clientID,
	}
}

// NewLatencyMeasurement creates a latency report message. Latencies are in
// milliseconds.
func NewLatencyMeasurement(latency, average float64, clientID string) LatencyMeasurement {
	return LatencyMeasurement{
		Type:           TypeLatencyMeasurement,
		Latency:        latency,
		AverageLatency: average,
		ClientID:       clientID,
	}
}

// NewRequestAnimation creates an animation request message.
func NewRequestAnimation(data RequestAnimationData, clientID string) RequestAnimation {
	return RequestAnimation{
		Type:      TypeRequestAnimation,
		Data:      data,
		ClientID:  clientID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewRequestTTSSync creates a TTS synchronization request message.
func NewRequestTTSSync(data RequestTTSSyncData, clientID string) RequestTTSSync {
	return RequestTTSSync{
		Type:      TypeRequestTTSSync,
		Data:      data,
		ClientID:  clientID,
		Timestamp: time.Now().UnixMilli(),
	}
}
