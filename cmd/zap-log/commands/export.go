package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mash-protocol/mash-zap/pkg/log"
)

// RunExport writes matching events to w as jsonl or csv.
func RunExport(path, format string, filter log.Filter, w io.Writer) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(w)
		return each(path, filter, func(e log.Event) error {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		})
	case "csv":
		return exportCSV(path, filter, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

var csvHeader = []string{
	"timestamp", "connection_id", "role", "direction", "layer", "category",
	"mechanism", "type", "sequence", "status", "detail",
}

func exportCSV(path string, filter log.Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	err := each(path, filter, func(e log.Event) error {
		return cw.Write(csvRow(e))
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}

func csvRow(e log.Event) []string {
	var seq, status, detail string
	switch {
	case e.ZAP != nil:
		seq = e.ZAP.Sequence
		status = e.ZAP.StatusCode
		detail = e.ZAP.Control
		if e.ZAP.Fault != "" {
			detail = e.ZAP.Fault
		}
	case e.Handshake != nil:
		status = strconv.Itoa(e.Handshake.Value)
	case e.StateChange != nil:
		detail = e.StateChange.OldState + "->" + e.StateChange.NewState
	case e.Error != nil:
		detail = e.Error.Message
	case e.Frame != nil:
		detail = strconv.Itoa(e.Frame.Size)
	}
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.ConnectionID,
		e.LocalRole.String(),
		e.Direction.String(),
		e.Layer.String(),
		e.Category.String(),
		e.Mechanism,
		typeLabel(e),
		seq,
		status,
		detail,
	}
}
