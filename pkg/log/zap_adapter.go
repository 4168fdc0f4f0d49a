package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapAdapter writes protocol events to a zap.Logger. Errors are logged at
// Warn, everything else at Debug.
type ZapAdapter struct {
	logger *zap.Logger
}

// NewZapAdapter creates an adapter for logger.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	return &ZapAdapter{logger: logger.Named("protocol")}
}

// Log writes the event.
func (a *ZapAdapter) Log(event Event) {
	level := zapcore.DebugLevel
	if event.Category == CategoryError {
		level = zapcore.WarnLevel
	}
	ce := a.logger.Check(level, event.Layer.String())
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.String("conn_id", event.ConnectionID),
		zap.Stringer("direction", event.Direction),
		zap.Stringer("category", event.Category),
		zap.Stringer("role", event.LocalRole),
	}
	if event.Mechanism != "" {
		fields = append(fields, zap.String("mechanism", event.Mechanism))
	}
	if event.Frame != nil {
		fields = append(fields, zap.Int("frame_size", event.Frame.Size))
	}
	if event.ZAP != nil {
		fields = append(fields, zap.Object("zap", zapEventMarshaler{event.ZAP}))
	}
	if event.StateChange != nil {
		fields = append(fields,
			zap.Stringer("entity", event.StateChange.Entity),
			zap.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			fields = append(fields, zap.String("reason", event.StateChange.Reason))
		}
	}
	if event.Handshake != nil {
		fields = append(fields,
			zap.String("event", event.Handshake.Kind),
			zap.Int("value", event.Handshake.Value),
		)
	}
	if event.Error != nil {
		fields = append(fields,
			zap.String("error_msg", event.Error.Message),
			zap.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			fields = append(fields, zap.Int("error_code", *event.Error.Code))
		}
	}
	ce.Write(fields...)
}

type zapEventMarshaler struct {
	e *ZAPEvent
}

func (m zapEventMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", m.e.Type.String())
	if m.e.Sequence != "" {
		enc.AddString("sequence", m.e.Sequence)
	}
	if m.e.Domain != "" {
		enc.AddString("domain", m.e.Domain)
	}
	if m.e.RoutingID != "" {
		enc.AddString("routing_id", m.e.RoutingID)
	}
	if m.e.StatusCode != "" {
		enc.AddString("status", m.e.StatusCode)
	}
	if m.e.UserID != "" {
		enc.AddString("user_id", m.e.UserID)
	}
	if m.e.FrameCount > 0 {
		enc.AddInt("frames", m.e.FrameCount)
	}
	if m.e.Fault != "" {
		enc.AddString("fault", m.e.Fault)
	}
	if m.e.Control != "" {
		enc.AddString("control", m.e.Control)
	}
	return nil
}

var _ Logger = (*ZapAdapter)(nil)
