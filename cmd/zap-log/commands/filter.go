package commands

import (
	"fmt"

	"github.com/mash-protocol/mash-zap/pkg/log"
)

// RunFilter copies matching events into a new log file and returns how
// many were written.
func RunFilter(path, output string, filter log.Filter) (int, error) {
	if output == path {
		return 0, fmt.Errorf("output must differ from input")
	}
	out, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	n := 0
	err = each(path, filter, func(e log.Event) error {
		out.Log(e)
		n++
		return nil
	})
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close output file: %w", cerr)
	}
	return n, err
}
