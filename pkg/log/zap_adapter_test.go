package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapterLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.Log(Event{
		ConnectionID: "c1",
		Layer:        LayerZAP,
		Category:     CategoryMessage,
		ZAP:          &ZAPEvent{Type: ZAPRequest, Sequence: "1", Domain: "ZAPTEST"},
	})
	code := 0x20000002
	adapter.Log(Event{
		Layer:    LayerHandshake,
		Category: CategoryError,
		Error:    &ErrorEventData{Message: "bad request id", Code: &code},
	})

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "ZAP", entries[0].Message)
	assert.Equal(t, "protocol", entries[0].LoggerName)
	assert.Equal(t, "c1", entries[0].ContextMap()["conn_id"])
	zapFields, ok := entries[0].ContextMap()["zap"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ZAPTEST", zapFields["domain"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(code), entries[1].ContextMap()["error_code"])
}

func TestZapAdapterRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	NewZapAdapter(zap.New(core)).Log(Event{Layer: LayerTransport, Frame: &FrameEvent{Size: 3}})
	assert.Zero(t, logs.Len())
}
