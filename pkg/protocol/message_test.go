package protocol

import (
	"errors"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    MessageType
		wantErr bool
	}{
		{
			name:  "valid heartbeat",
			input: `{"type":"heartbeat","queue_length":2}`,
			want:  TypeHeartbeat,
		},
		{
			name:  "unknown type is still an envelope",
			input: `{"type":"something_new"}`,
			want:  "something_new",
		},
		{
			name:    "missing type",
			input:   `{"queue_length":2}`,
			wantErr: true,
		},
		{
			name:    "empty type",
			input:   `{"type":""}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   `hello`,
			wantErr: true,
		},
		{
			name:    "json array",
			input:   `[1,2,3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !IsProtocolError(err) {
					t.Errorf("error %v is not a ProtocolError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Type != tt.want {
				t.Errorf("Type = %q, want %q", env.Type, tt.want)
			}
		})
	}
}

func TestParseAnimationEvent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EventType
		wantErr bool
	}{
		{
			name: "string event_type",
			input: `{"type":"animation_event","event":{
				"event_type":"expression_change","timestamp":1700000000.5,
				"data":{"expression":"happy","intensity":0.8,"duration":2.0},
				"sequence_id":"seq-1"}}`,
			want: EventExpressionChange,
		},
		{
			name: "structured event_type",
			input: `{"type":"animation_event","event":{
				"event_type":{"type":"mouth_sync_start","value":{}},
				"timestamp":1700000000.5,"data":{}}}`,
			want: EventMouthSyncStart,
		},
		{
			name: "zero timestamp is still present",
			input: `{"type":"animation_event","event":{
				"event_type":"parameter_update","timestamp":0,"data":{}}}`,
			want: EventParameterUpdate,
		},
		{
			name:    "missing event object",
			input:   `{"type":"animation_event"}`,
			wantErr: true,
		},
		{
			name: "missing event_type",
			input: `{"type":"animation_event","event":{
				"timestamp":1700000000.5,"data":{}}}`,
			wantErr: true,
		},
		{
			name: "missing timestamp",
			input: `{"type":"animation_event","event":{
				"event_type":"expression_change","data":{}}}`,
			wantErr: true,
		},
		{
			name: "missing data",
			input: `{"type":"animation_event","event":{
				"event_type":"expression_change","timestamp":1700000000.5}}`,
			wantErr: true,
		},
		{
			name: "structured event_type missing value",
			input: `{"type":"animation_event","event":{
				"event_type":{"type":"expression_change"},
				"timestamp":1700000000.5,"data":{}}}`,
			wantErr: true,
		},
		{
			name: "structured event_type missing type",
			input: `{"type":"animation_event","event":{
				"event_type":{"value":{}},
				"timestamp":1700000000.5,"data":{}}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := parseAnimationEvent([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrMalformedEvent) && !IsProtocolError(err) {
					t.Errorf("unexpected error kind: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if event.EventType != tt.want {
				t.Errorf("EventType = %q, want %q", event.EventType, tt.want)
			}
		})
	}
}

func TestParseAnimationEventFields(t *testing.T) {
	input := `{"type":"animation_event","event":{
		"event_type":"expression_change","timestamp":1700000000.25,
		"data":{"expression":"sad","intensity":0.6,"duration":1.5},
		"sequence_id":"seq-42","duration":1.5,"priority":3}}`

	event, err := parseAnimationEvent([]byte(input))
	if err != nil {
		t.Fatalf("parseAnimationEvent: %v", err)
	}

	if event.Timestamp != 1700000000.25 {
		t.Errorf("Timestamp = %v", event.Timestamp)
	}
	if event.SequenceID != "seq-42" {
		t.Errorf("SequenceID = %q", event.SequenceID)
	}
	if event.Priority != 3 {
		t.Errorf("Priority = %d", event.Priority)
	}

	var data ExpressionChangeData
	if err := event.ParseData(&data); err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if data.Expression != "sad" || data.Intensity != 0.6 || data.Duration != 1.5 {
		t.Errorf("data = %+v", data)
	}
}

func TestEventTypeValid(t *testing.T) {
	for _, e := range []EventType{
		EventExpressionChange, EventMouthSyncStart, EventMouthSyncUpdate,
		EventMouthSyncStop, EventParameterUpdate, EventSyncTiming,
	} {
		if !e.Valid() {
			t.Errorf("%q should be valid", e)
		}
	}
	if EventType("explode").Valid() {
		t.Error("unknown event type reported valid")
	}
}

func TestNewPingCarriesTimestamp(t *testing.T) {
	p := NewPing("c1")
	if p.Type != TypePing {
		t.Errorf("Type = %q", p.Type)
	}
	if p.Timestamp == 0 {
		t.Error("Timestamp not stamped")
	}
	if p.ClientID != "c1" {
		t.Errorf("ClientID = %q", p.ClientID)
	}
}
