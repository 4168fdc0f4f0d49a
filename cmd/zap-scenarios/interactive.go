package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/mash-zap/internal/scenario"
)

// Shell runs scenarios on demand.
type Shell struct {
	rl     *readline.Instance
	runner *scenario.Runner
	scs    []*scenario.Scenario
	failed bool
}

// NewShell creates the interactive shell.
func NewShell(cfg scenario.Config, scs []*scenario.Scenario) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "zap> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("list"),
			readline.PcItem("run", readline.PcItemDynamic(func(string) []string {
				ids := []string{"all"}
				for _, sc := range scs {
					ids = append(ids, sc.ID)
				}
				return ids
			})),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl, runner: scenario.NewRunner(cfg), scs: scs}, nil
}

// Run reads commands until quit or EOF and reports whether any scenario
// run from the shell failed.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) bool {
	defer s.rl.Close()

	s.printHelp()
	for {
		select {
		case <-ctx.Done():
			return s.failed
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return s.failed
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()
		case "list", "ls":
			s.cmdList(args)
		case "run", "r":
			s.cmdRun(ctx, args)
		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return s.failed
		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) cmdList(args []string) {
	pattern := ""
	if len(args) > 0 {
		pattern = args[0]
	}
	scs, err := scenario.Select(s.scs, pattern)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	listScenarios(s.rl.Stdout(), scs)
}

func (s *Shell) cmdRun(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: run <id|pattern|all>")
		return
	}

	selected := s.lookup(args[0])
	if selected == nil {
		var err error
		selected, err = scenario.Select(s.scs, args[0])
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
			return
		}
	}
	if len(selected) == 0 {
		fmt.Fprintf(s.rl.Stdout(), "No scenario matches %s\n", args[0])
		return
	}

	reporter := scenario.NewTextReporter(s.rl.Stdout(), *verbose)
	result := s.runner.RunAll(ctx, args[0], selected)
	for _, res := range result.Results {
		reporter.ReportResult(res)
	}
	if len(result.Results) > 1 {
		reporter.ReportSummary(result)
	}
	s.failed = s.failed || result.FailCount > 0
}

// lookup resolves "all" and exact IDs.
func (s *Shell) lookup(arg string) []*scenario.Scenario {
	if strings.EqualFold(arg, "all") {
		return s.scs
	}
	for _, sc := range s.scs {
		if sc.ID == arg {
			return []*scenario.Scenario{sc}
		}
	}
	return nil
}

func listScenarios(w io.Writer, scs []*scenario.Scenario) {
	for _, sc := range scs {
		fmt.Fprintf(w, "  %-10s %-6s %-16s %s\n", sc.ID, sc.Mechanism, sc.Fault, sc.Name)
	}
	fmt.Fprintf(w, "%d scenarios\n", len(scs))
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
ZAP Scenario Commands:
  list [pattern]          - List scenarios, optionally filtered by ID pattern
  run <id|pattern|all>    - Run one scenario, a pattern or the whole matrix
  help                    - Show this help
  quit                    - Exit`)
}
