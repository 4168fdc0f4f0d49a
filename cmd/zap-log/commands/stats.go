package commands

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/mash-protocol/mash-zap/pkg/log"
)

// Stats aggregates a log file.
type Stats struct {
	TotalEvents int
	ByLayer     map[log.Layer]int
	ByCategory  map[log.Category]int
	ByRole      map[log.Role]int
	Statuses    map[string]int
	Handshakes  map[string]int
	Faults      map[string]int
	Controls    map[string]int
	Connections map[string]int
	Errors      int
	Start, End  time.Time
}

func newStats() *Stats {
	return &Stats{
		ByLayer:     map[log.Layer]int{},
		ByCategory:  map[log.Category]int{},
		ByRole:      map[log.Role]int{},
		Statuses:    map[string]int{},
		Handshakes:  map[string]int{},
		Faults:      map[string]int{},
		Controls:    map[string]int{},
		Connections: map[string]int{},
	}
}

func (s *Stats) add(e log.Event) {
	s.TotalEvents++
	s.ByLayer[e.Layer]++
	s.ByCategory[e.Category]++
	s.ByRole[e.LocalRole]++
	if e.ConnectionID != "" {
		s.Connections[e.ConnectionID]++
	}
	if s.Start.IsZero() || e.Timestamp.Before(s.Start) {
		s.Start = e.Timestamp
	}
	if e.Timestamp.After(s.End) {
		s.End = e.Timestamp
	}

	switch {
	case e.ZAP != nil:
		switch e.ZAP.Type {
		case log.ZAPReply:
			s.Statuses[e.ZAP.StatusCode]++
			if e.ZAP.Fault != "" {
				s.Faults[e.ZAP.Fault]++
			}
		case log.ZAPControl:
			s.Controls[e.ZAP.Control]++
		}
	case e.Handshake != nil:
		s.Handshakes[e.Handshake.Kind]++
	case e.Error != nil:
		s.Errors++
	}
}

// CollectStats reads every event in path.
func CollectStats(path string) (*Stats, error) {
	s := newStats()
	err := each(path, log.Filter{}, func(e log.Event) error {
		s.add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RunStats prints statistics about path.
func RunStats(path string, w io.Writer) error {
	s, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, s)
	return nil
}

func printStats(w io.Writer, s *Stats) {
	fmt.Fprintln(w, "=== ZAP Protocol Log Statistics ===")
	fmt.Fprintln(w)
	if s.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n\n", s.End.Sub(s.Start).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Total Events: %d\n", s.TotalEvents)
	fmt.Fprintf(w, "Connections:  %d\n", len(s.Connections))
	fmt.Fprintf(w, "Errors:       %d\n\n", s.Errors)

	fmt.Fprintln(w, "Events by Layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerHandshake, log.LayerZAP} {
		if n := s.ByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", l.String()+":", n)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Role:")
	for _, r := range []log.Role{log.RoleClient, log.RoleServer, log.RoleBroker} {
		if n := s.ByRole[r]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", r.String()+":", n)
		}
	}

	printCounts(w, "Reply Statuses", s.Statuses)
	printCounts(w, "Injected Faults", s.Faults)
	printCounts(w, "Handshake Outcomes", s.Handshakes)
	printCounts(w, "Control Messages", s.Controls)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-28s %d\n", k+":", counts[k])
	}
}
