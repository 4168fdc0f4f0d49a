// Command zap-scenarios runs the ZAP handshake scenario matrix.
//
// Each scenario starts a server with an authentication handler (optionally
// misbehaving), connects one or more clients and checks the handshake
// events both sides report.
//
// Usage:
//
//	zap-scenarios [flags]
//
// Flags:
//
//	-dir string           Directory of scenario YAML files (default: built-in matrix)
//	-run string           Regular expression selecting scenario IDs
//	-timeout duration     Per-scenario timeout (default 30s)
//	-verbose              Enable verbose output
//	-json                 Output results as JSON
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-console              Mirror protocol events to the console
//	-interactive          Start an interactive shell
//
// Examples:
//
//	# Run the whole built-in matrix
//	zap-scenarios
//
//	# Run the fault scenarios with a protocol capture
//	zap-scenarios -run '^FAULT-' -protocol-log /tmp/faults.mlog
//
//	# Inspect the captured broker traffic
//	zap-log view -layer zap /tmp/faults.mlog
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mash-protocol/mash-zap/internal/scenario"
	mashlog "github.com/mash-protocol/mash-zap/pkg/log"
)

var (
	dir         = flag.String("dir", "", "Directory of scenario YAML files (default: built-in matrix)")
	runPattern  = flag.String("run", "", "Regular expression selecting scenario IDs")
	timeout     = flag.Duration("timeout", scenario.DefaultTimeout, "Per-scenario timeout")
	verbose     = flag.Bool("verbose", false, "Enable verbose output")
	jsonOut     = flag.Bool("json", false, "Output results as JSON")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	console     = flag.Bool("console", false, "Mirror protocol events to the console")
	interactive = flag.Bool("interactive", false, "Start an interactive shell")
)

func main() {
	flag.Parse()

	if *jsonOut && *interactive {
		fmt.Fprintln(os.Stderr, "Error: -json and -interactive are mutually exclusive")
		flag.Usage()
		os.Exit(1)
	}

	scs, source, err := loadScenarios(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !*jsonOut {
		log.SetFlags(log.Ltime)
		if *verbose {
			log.SetFlags(log.Ltime | log.Lmicroseconds)
		}
		log.Printf("Scenarios: %d from %s", len(scs), source)
	}

	var loggers []mashlog.Logger
	var fileLogger *mashlog.FileLogger
	if *protocolLog != "" {
		fileLogger, err = mashlog.NewFileLogger(*protocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create protocol logger: %v\n", err)
			os.Exit(1)
		}
		loggers = append(loggers, fileLogger)
		if !*jsonOut {
			log.Printf("Protocol logging to: %s", *protocolLog)
		}
	}
	var zapLogger *zap.Logger
	if *console {
		zapLogger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create console logger: %v\n", err)
			os.Exit(1)
		}
		loggers = append(loggers, mashlog.NewZapAdapter(zapLogger.Named("protocol")))
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	cfg := scenario.Config{
		Timeout: *timeout,
		Logger:  mashlog.NewMultiLogger(loggers...),
		Log:     slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	failed := run(ctx, cancel, cfg, scs, source)
	cancel()

	if fileLogger != nil {
		if err := fileLogger.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: closing protocol log: %v\n", err)
		}
	}
	if zapLogger != nil {
		_ = zapLogger.Sync()
	}
	if failed {
		os.Exit(1)
	}
}

// run executes the selected scenarios, or the shell, and reports whether
// anything failed.
func run(ctx context.Context, cancel context.CancelFunc, cfg scenario.Config, scs []*scenario.Scenario, source string) bool {
	if *interactive {
		shell, err := NewShell(cfg, scs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return true
		}
		return shell.Run(ctx, cancel)
	}

	selected, err := scenario.Select(scs, *runPattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return true
	}
	if len(selected) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no scenario matches %q\n", *runPattern)
		return true
	}

	var reporter scenario.Reporter = scenario.NewTextReporter(os.Stdout, *verbose)
	if *jsonOut {
		reporter = scenario.NewJSONReporter(os.Stdout, true)
	}

	start := time.Now()
	result := scenario.NewRunner(cfg).RunAll(ctx, source, selected)
	reporter.ReportSuite(result)
	if !*jsonOut {
		log.Printf("Finished in %s", time.Since(start).Round(time.Millisecond))
	}
	return result.FailCount > 0 || len(result.Results) < len(selected)
}

func loadScenarios(dir string) ([]*scenario.Scenario, string, error) {
	if dir == "" {
		scs, err := scenario.Builtin()
		return scs, "built-in", err
	}
	scs, err := scenario.LoadDirectory(dir)
	return scs, dir, err
}
