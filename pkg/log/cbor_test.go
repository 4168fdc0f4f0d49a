package log

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestEventRoundTrip(t *testing.T) {
	code := 0x20000003
	ts := time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.UTC)

	tests := []struct {
		name  string
		event Event
	}{
		{"frame", Event{
			Timestamp: ts, ConnectionID: "c1", Direction: DirectionOut,
			Layer: LayerTransport, Category: CategoryMessage,
			Frame: &FrameEvent{Size: 12, Data: []byte{1, 2, 3}, Truncated: true},
		}},
		{"zap reply", Event{
			Timestamp: ts, ConnectionID: "c2", Layer: LayerZAP, LocalRole: RoleBroker,
			Mechanism: "CURVE",
			ZAP: &ZAPEvent{
				Type: ZAPReply, Sequence: "3", StatusCode: "200",
				UserID: "anonymous", FrameCount: 6, Fault: "wrong-version",
			},
		}},
		{"handshake", Event{
			Timestamp: ts, Layer: LayerHandshake, Category: CategoryState, LocalRole: RoleServer,
			Handshake: &HandshakeEvent{Kind: "HANDSHAKE_FAILED_AUTH", Value: 400},
		}},
		{"error", Event{
			Timestamp: ts, Layer: LayerHandshake, Category: CategoryError,
			Error: &ErrorEventData{Layer: LayerZAP, Message: "bad version", Code: &code, Context: "zap reply"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}
			if diff := cmp.Diff(tt.event, got); diff != "" {
				t.Errorf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeEventGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}
