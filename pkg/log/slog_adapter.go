package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger at Debug level.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates an adapter for logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
		slog.String("role", event.LocalRole.String()),
	}
	if event.Mechanism != "" {
		attrs = append(attrs, slog.String("mechanism", event.Mechanism))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.ZAP != nil:
		z := event.ZAP
		attrs = append(attrs, slog.String("zap_type", z.Type.String()))
		if z.Sequence != "" {
			attrs = append(attrs, slog.String("sequence", z.Sequence))
		}
		if z.Domain != "" {
			attrs = append(attrs, slog.String("domain", z.Domain))
		}
		if z.RoutingID != "" {
			attrs = append(attrs, slog.String("routing_id", z.RoutingID))
		}
		if z.StatusCode != "" {
			attrs = append(attrs, slog.String("status", z.StatusCode))
		}
		if z.UserID != "" {
			attrs = append(attrs, slog.String("user_id", z.UserID))
		}
		if z.FrameCount > 0 {
			attrs = append(attrs, slog.Int("frames", z.FrameCount))
		}
		if z.Fault != "" {
			attrs = append(attrs, slog.String("fault", z.Fault))
		}
		if z.Control != "" {
			attrs = append(attrs, slog.String("control", z.Control))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Handshake != nil:
		attrs = append(attrs,
			slog.String("event", event.Handshake.Kind),
			slog.Int("value", event.Handshake.Value),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
