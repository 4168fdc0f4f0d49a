package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mash-protocol/mash-zap/internal/zapharness"
)

// Reporter formats scenario results.
type Reporter interface {
	// ReportSuite reports the results of a run.
	ReportSuite(result *SuiteResult)

	// ReportResult reports a single scenario.
	ReportResult(result *Result)
}

// TextReporter writes human-readable results.
type TextReporter struct {
	writer  io.Writer
	verbose bool
}

// NewTextReporter creates a text reporter.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	return &TextReporter{writer: w, verbose: verbose}
}

// ReportSuite writes every result and a summary.
func (r *TextReporter) ReportSuite(result *SuiteResult) {
	fmt.Fprintf(r.writer, "\n=== Scenarios: %s ===\n", result.Name)
	for _, res := range result.Results {
		r.ReportResult(res)
	}
	r.ReportSummary(result)
}

// ReportSummary writes the totals only.
func (r *TextReporter) ReportSummary(result *SuiteResult) {
	fmt.Fprintf(r.writer, "\n--- Summary ---\n")
	fmt.Fprintf(r.writer, "Total:    %d\n", len(result.Results))
	fmt.Fprintf(r.writer, "Passed:   %d\n", result.PassCount)
	fmt.Fprintf(r.writer, "Failed:   %d\n", result.FailCount)
	fmt.Fprintf(r.writer, "Duration: %s\n", result.Duration.Round(time.Millisecond))
}

// ReportResult writes one line per scenario, plus details when verbose or
// failed.
func (r *TextReporter) ReportResult(result *Result) {
	sc := result.Scenario
	status := "PASS"
	if !result.Passed {
		status = "FAIL"
	}
	fmt.Fprintf(r.writer, "[%s] %s - %s (%s)\n", status, sc.ID, sc.Name, result.Duration.Round(time.Millisecond))

	if r.verbose {
		fmt.Fprintf(r.writer, "       mechanism=%s fault=%s credentials=%s requests=%d\n",
			sc.Mechanism, sc.Fault, sc.credentials(), result.Requests)
		if sc.Description != "" {
			fmt.Fprintf(r.writer, "       %s\n", sc.Description)
		}
	}
	if result.Err != nil {
		fmt.Fprintf(r.writer, "       %s error: %v\n", zapharness.CategoryOf(result.Err), result.Err)
	}
}

// JSONReporter writes results as JSON.
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{writer: w, pretty: pretty}
}

// JSONSuiteResult is the JSON form of a SuiteResult.
type JSONSuiteResult struct {
	Name       string           `json:"name"`
	Total      int              `json:"total"`
	Passed     int              `json:"passed"`
	Failed     int              `json:"failed"`
	DurationMS int64            `json:"duration_ms"`
	Results    []JSONTestResult `json:"results"`
}

// JSONTestResult is the JSON form of a Result.
type JSONTestResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Mechanism  string `json:"mechanism"`
	Fault      string `json:"fault"`
	Passed     bool   `json:"passed"`
	Requests   int64  `json:"requests"`
	DurationMS int64  `json:"duration_ms"`
	Category   string `json:"category,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ReportSuite writes the whole run as one JSON document.
func (r *JSONReporter) ReportSuite(result *SuiteResult) {
	out := JSONSuiteResult{
		Name:       result.Name,
		Total:      len(result.Results),
		Passed:     result.PassCount,
		Failed:     result.FailCount,
		DurationMS: result.Duration.Milliseconds(),
	}
	for _, res := range result.Results {
		out.Results = append(out.Results, toJSON(res))
	}
	r.writeJSON(out)
}

// ReportResult writes one result as a JSON document.
func (r *JSONReporter) ReportResult(result *Result) {
	r.writeJSON(toJSON(result))
}

func toJSON(result *Result) JSONTestResult {
	out := JSONTestResult{
		ID:         result.Scenario.ID,
		Name:       result.Scenario.Name,
		Mechanism:  result.Scenario.Mechanism,
		Fault:      result.Scenario.Fault.String(),
		Passed:     result.Passed,
		Requests:   result.Requests,
		DurationMS: result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		out.Category = zapharness.CategoryOf(result.Err).String()
		out.Error = result.Err.Error()
	}
	return out
}

func (r *JSONReporter) writeJSON(v any) {
	enc := json.NewEncoder(r.writer)
	if r.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.writer, "error encoding JSON: %v\n", err)
	}
}
