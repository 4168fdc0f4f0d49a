package scenario

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mash-protocol/mash-zap/internal/zapharness"
)

func sampleSuite() *SuiteResult {
	return &SuiteResult{
		Name: "sample",
		Results: []*Result{
			{Scenario: &Scenario{ID: "P-1", Name: "passes", Mechanism: "NULL"}, Passed: true, Requests: 1, Duration: 12 * time.Millisecond},
			{
				Scenario: &Scenario{ID: "F-1", Name: "fails", Mechanism: "PLAIN", Fault: zapharness.FaultWrongVersion},
				Err:      zapharness.UnexpectedEvent(errors.New("no event")),
				Duration: time.Second,
			},
		},
		PassCount: 1,
		FailCount: 1,
		Duration:  time.Second,
	}
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	NewTextReporter(&buf, false).ReportSuite(sampleSuite())
	out := buf.String()

	assert.Contains(t, out, "[PASS] P-1 - passes (12ms)")
	assert.Contains(t, out, "[FAIL] F-1 - fails (1s)")
	assert.Contains(t, out, "unexpected-event error: unexpected-event: no event")
	assert.Contains(t, out, "Passed:   1")
	assert.NotContains(t, out, "mechanism=")
}

func TestTextReporterVerbose(t *testing.T) {
	var buf bytes.Buffer
	NewTextReporter(&buf, true).ReportResult(sampleSuite().Results[1])
	assert.Contains(t, buf.String(), "mechanism=PLAIN fault=wrong-version credentials=valid requests=0")
}

func TestJSONReporterResult(t *testing.T) {
	var buf bytes.Buffer
	NewJSONReporter(&buf, true).ReportResult(sampleSuite().Results[0])
	assert.Contains(t, buf.String(), `"id": "P-1"`)
	assert.Contains(t, buf.String(), `"fault": "none"`)
	assert.NotContains(t, buf.String(), `"error"`)
}
