package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-zap/internal/zapharness"
	"github.com/mash-protocol/mash-zap/pkg/log"
)

func TestBuiltinScenariosPass(t *testing.T) {
	if testing.Short() {
		t.Skip("runs every built-in scenario over TCP")
	}
	scs, err := Builtin()
	require.NoError(t, err)

	runner := NewRunner(Config{Timeout: 20 * time.Second})
	for _, sc := range scs {
		t.Run(sc.ID, func(t *testing.T) {
			t.Parallel()
			res := runner.Run(context.Background(), sc)
			require.NoError(t, res.Err)
			assert.True(t, res.Passed)
		})
	}
}

func TestRunnerReportsWrongExpectation(t *testing.T) {
	scs, err := Parse([]byte(`
id: WRONG-01
name: PLAIN valid client expected to fail
mechanism: PLAIN
expect:
  connected: false
`))
	require.NoError(t, err)

	res := NewRunner(Config{}).Run(context.Background(), scs[0])
	assert.False(t, res.Passed)
	assert.ErrorIs(t, res.Err, zapharness.ErrBounceDelivered)
	assert.Equal(t, zapharness.ErrCatUnexpectedEvent, zapharness.CategoryOf(res.Err))
}

func TestRunnerChecksRequestCount(t *testing.T) {
	scs, err := Parse([]byte(`
id: COUNT-01
name: NULL with a wrong request count
mechanism: NULL
expect:
  connected: true
  requests: 5
`))
	require.NoError(t, err)

	res := NewRunner(Config{}).Run(context.Background(), scs[0])
	assert.ErrorIs(t, res.Err, ErrRequestCount)
	assert.Equal(t, int64(1), res.Requests)
}

func TestRunnerTimeout(t *testing.T) {
	scs, err := Parse([]byte(`
id: SLOW-01
name: Handler never answers
mechanism: PLAIN
fault: do-not-send
expect:
  connected: false
`))
	require.NoError(t, err)

	res := NewRunner(Config{Timeout: 100 * time.Millisecond}).Run(context.Background(), scs[0])
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.False(t, res.Passed)
}

func TestRunAllCountsAndCaptures(t *testing.T) {
	scs, err := Parse([]byte(`
id: A-01
name: NULL accepted
mechanism: NULL
expect:
  connected: true
  server: {event: HANDSHAKE_SUCCEEDED}
  requests: 1
---
id: A-02
name: PLAIN rejected but expected to connect
mechanism: PLAIN
credentials: wrong-user
expect:
  connected: true
`))
	require.NoError(t, err)

	rec := &log.Recorder{}
	var seen []string
	runner := NewRunner(Config{
		Logger:   rec,
		OnResult: func(r *Result) { seen = append(seen, r.Scenario.ID) },
	})
	suite := runner.RunAll(context.Background(), "mixed", scs)

	assert.Equal(t, []string{"A-01", "A-02"}, seen)
	assert.Equal(t, 1, suite.PassCount)
	assert.Equal(t, 1, suite.FailCount)

	var zapEvents int
	for _, ev := range rec.Events() {
		if ev.Layer == log.LayerZAP {
			zapEvents++
		}
	}
	assert.Positive(t, zapEvents, "handler traffic reaches the protocol log")

	var buf bytes.Buffer
	NewJSONReporter(&buf, false).ReportSuite(suite)
	var decoded JSONSuiteResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.Total)
	assert.Equal(t, "unexpected-event", decoded.Results[1].Category)
}

func TestRunAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suite := NewRunner(Config{}).RunAll(ctx, "cancelled", []*Scenario{{ID: "X", Mechanism: "NULL"}})
	assert.Empty(t, suite.Results)
}

func TestExecuteUnwindsOnCancel(t *testing.T) {
	scs, err := Parse([]byte(`
id: SLOW-02
name: Several silent attempts
mechanism: PLAIN
fault: do-not-send
attempts: 3
expect:
  connected: false
`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = NewRunner(Config{}).execute(ctx, scs[0])
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
