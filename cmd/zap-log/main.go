// Command zap-log views and analyzes protocol logs written by
// zap-scenarios -protocol-log.
//
// Usage:
//
//	zap-log <command> [flags] <file.mlog>
//
// Commands:
//
//	view     Print events in human-readable form
//	export   Export events as jsonl or csv
//	filter   Copy matching events into a new log file
//	stats    Summarize statuses, faults and handshake outcomes
//
// Examples:
//
//	# Broker traffic only
//	zap-log view -layer zap run.mlog
//
//	# Client-side handshake outcomes as CSV
//	zap-log export -format csv -role client -layer handshake run.mlog
//
//	# Keep one connection
//	zap-log filter -conn-id 3f2a9c1e -o conn.mlog run.mlog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mash-protocol/mash-zap/cmd/zap-log/commands"
	"github.com/mash-protocol/mash-zap/pkg/log"
)

const usage = `zap-log - ZAP protocol log analyzer

Usage:
  zap-log <command> [flags] <file.mlog>

Commands:
  view     Print events in human-readable form
  export   Export events as jsonl or csv
  filter   Copy matching events into a new log file
  stats    Summarize statuses, faults and handshake outcomes

Use "zap-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "view":
		fs, opts := newFilterFlags("view")
		if err := fs.Parse(args); err != nil {
			return err
		}
		path, f, err := resolve(fs, opts)
		if err != nil {
			return err
		}
		return commands.RunView(path, f, stdout)

	case "export":
		fs, opts := newFilterFlags("export")
		format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
		output := fs.String("o", "", "Output file (default stdout)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		path, f, err := resolve(fs, opts)
		if err != nil {
			return err
		}
		w := stdout
		if *output != "" {
			file, err := os.Create(*output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer file.Close()
			w = file
		}
		return commands.RunExport(path, *format, f, w)

	case "filter":
		fs, opts := newFilterFlags("filter")
		output := fs.String("o", "", "Output file (required)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *output == "" {
			return fmt.Errorf("output file (-o) required")
		}
		path, f, err := resolve(fs, opts)
		if err != nil {
			return err
		}
		n, err := commands.RunFilter(path, *output, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %d events to %s\n", n, *output)
		return nil

	case "stats":
		fs := flag.NewFlagSet("stats", flag.ContinueOnError)
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() < 1 {
			return fmt.Errorf("log file path required")
		}
		return commands.RunStats(fs.Arg(0), stdout)

	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil

	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func newFilterFlags(name string) (*flag.FlagSet, *commands.FilterOptions) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	o := &commands.FilterOptions{}
	fs.StringVar(&o.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&o.Layer, "layer", "", "Filter by layer (transport, handshake, zap)")
	fs.StringVar(&o.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&o.Category, "category", "", "Filter by category (message, control, state, error)")
	fs.StringVar(&o.Role, "role", "", "Filter by role (client, server, broker)")
	fs.StringVar(&o.Mechanism, "mechanism", "", "Filter by mechanism (null, plain, curve)")
	fs.StringVar(&o.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&o.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return fs, o
}

func resolve(fs *flag.FlagSet, opts *commands.FilterOptions) (string, log.Filter, error) {
	if fs.NArg() < 1 {
		return "", log.Filter{}, fmt.Errorf("log file path required")
	}
	f, err := opts.Build()
	return fs.Arg(0), f, err
}
