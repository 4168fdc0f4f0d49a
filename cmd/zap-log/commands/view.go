// Package commands implements the zap-log subcommands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mash-protocol/mash-zap/pkg/log"
)

// FilterOptions holds the flag values shared by view, export and filter.
type FilterOptions struct {
	ConnID    string
	Layer     string
	Direction string
	Category  string
	Role      string
	Mechanism string
	TimeStart string
	TimeEnd   string
}

// Build converts the flag values into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	f := log.Filter{ConnectionID: o.ConnID, Mechanism: strings.ToUpper(o.Mechanism)}
	if o.Layer != "" {
		l, err := ParseLayer(o.Layer)
		if err != nil {
			return f, err
		}
		f.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirection(o.Direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategory(o.Category)
		if err != nil {
			return f, err
		}
		f.Category = &c
	}
	if o.Role != "" {
		r, err := ParseRole(o.Role)
		if err != nil {
			return f, err
		}
		f.Role = &r
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return f, fmt.Errorf("invalid time-start: %w", err)
		}
		f.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return f, fmt.Errorf("invalid time-end: %w", err)
		}
		f.TimeEnd = &t
	}
	return f, nil
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "handshake":
		return log.LayerHandshake, nil
	case "zap":
		return log.LayerZAP, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, handshake, or zap)", s)
	}
}

// ParseDirection parses a direction name (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
}

// ParseRole parses a role name (case-insensitive).
func ParseRole(s string) (log.Role, error) {
	switch strings.ToLower(s) {
	case "client":
		return log.RoleClient, nil
	case "server":
		return log.RoleServer, nil
	case "broker":
		return log.RoleBroker, nil
	default:
		return 0, fmt.Errorf("invalid role: %s (must be client, server, or broker)", s)
	}
}

// RunView prints matching events in human-readable form.
func RunView(path string, filter log.Filter, w io.Writer) error {
	return each(path, filter, func(e log.Event) error {
		formatEvent(w, e)
		return nil
	})
}

// each streams every event that passes filter to fn.
func each(path string, filter log.Filter, fn func(log.Event) error) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

func typeLabel(e log.Event) string {
	switch {
	case e.Frame != nil:
		return "Frame"
	case e.ZAP != nil:
		return e.ZAP.Type.String()
	case e.StateChange != nil:
		return "State"
	case e.Handshake != nil:
		return e.Handshake.Kind
	case e.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes one event followed by a blank line.
func formatEvent(w io.Writer, e log.Event) {
	ts := e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	layer := e.Layer.String()
	if e.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [conn:%s] %-6s %-3s %s %s\n",
		ts, shortenConnID(e.ConnectionID), e.LocalRole, e.Direction, layer, typeLabel(e))
	if e.Mechanism != "" {
		fmt.Fprintf(w, "  Mechanism: %s\n", e.Mechanism)
	}

	switch {
	case e.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", e.Frame.Size)
		if len(e.Frame.Data) > 0 {
			fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(e.Frame.Data))
			if e.Frame.Truncated {
				fmt.Fprint(w, " (truncated)")
			}
			fmt.Fprintln(w)
		}
	case e.ZAP != nil:
		formatZAP(w, e.ZAP)
	case e.StateChange != nil:
		sc := e.StateChange
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case e.Handshake != nil:
		fmt.Fprintf(w, "  Value: %d\n", e.Handshake.Value)
	case e.Error != nil:
		fmt.Fprintf(w, "  Message: %s\n", e.Error.Message)
		if e.Error.Code != nil {
			fmt.Fprintf(w, "  Code: %d\n", *e.Error.Code)
		}
		if e.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", e.Error.Context)
		}
	}
	fmt.Fprintln(w)
}

func formatZAP(w io.Writer, z *log.ZAPEvent) {
	if z.Type == log.ZAPControl {
		fmt.Fprintf(w, "  Control: %s\n", z.Control)
		return
	}
	fmt.Fprintf(w, "  Sequence: %q  Frames: %d\n", z.Sequence, z.FrameCount)
	switch z.Type {
	case log.ZAPRequest:
		fmt.Fprintf(w, "  Domain: %q  RoutingID: %q\n", z.Domain, z.RoutingID)
	case log.ZAPReply:
		fmt.Fprintf(w, "  Status: %s  UserID: %q\n", z.StatusCode, z.UserID)
	}
	if z.Fault != "" {
		fmt.Fprintf(w, "  Fault: %s\n", z.Fault)
	}
}

func shortenConnID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
