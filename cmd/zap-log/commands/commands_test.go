package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-zap/pkg/log"
)

var base = time.Date(2026, 3, 4, 10, 15, 32, 123456000, time.UTC)

func sampleEvents() []log.Event {
	return []log.Event{
		{
			Timestamp: base, Layer: log.LayerZAP, Category: log.CategoryControl,
			LocalRole: log.RoleBroker, Direction: log.DirectionOut,
			ZAP: &log.ZAPEvent{Type: log.ZAPControl, Control: "GO"},
		},
		{
			Timestamp: base.Add(time.Millisecond), ConnectionID: "abc12345-6789-0123",
			Layer: log.LayerZAP, Category: log.CategoryMessage, LocalRole: log.RoleBroker,
			Direction: log.DirectionIn, Mechanism: "PLAIN",
			ZAP: &log.ZAPEvent{Type: log.ZAPRequest, Sequence: "1", Domain: "ZAPTEST", RoutingID: "IDENT", FrameCount: 8},
		},
		{
			Timestamp: base.Add(2 * time.Millisecond), ConnectionID: "abc12345-6789-0123",
			Layer: log.LayerZAP, Category: log.CategoryMessage, LocalRole: log.RoleBroker,
			Direction: log.DirectionOut, Mechanism: "PLAIN",
			ZAP: &log.ZAPEvent{Type: log.ZAPReply, Sequence: "1", StatusCode: "300", FrameCount: 6, Fault: "temp-failure"},
		},
		{
			Timestamp: base.Add(3 * time.Millisecond), ConnectionID: "def99999",
			Layer: log.LayerHandshake, Category: log.CategoryState, LocalRole: log.RoleClient,
			Handshake: &log.HandshakeEvent{Kind: "HANDSHAKE_FAILED_AUTH", Value: 300},
		},
		{
			Timestamp: base.Add(4 * time.Millisecond), Layer: log.LayerTransport,
			Category: log.CategoryError, LocalRole: log.RoleServer,
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "broken pipe"},
		},
	}
}

func writeLog(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.mlog")
	fl, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		fl.Log(e)
	}
	require.NoError(t, fl.Close())
	return path
}

func TestRunView(t *testing.T) {
	path := writeLog(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunView(path, log.Filter{}, &buf))
	out := buf.String()

	assert.Contains(t, out, "2026-03-04T10:15:32.123456Z")
	assert.Contains(t, out, "[conn:abc12345]")
	assert.Contains(t, out, "CTRL CONTROL")
	assert.Contains(t, out, "Control: GO")
	assert.Contains(t, out, `Domain: "ZAPTEST"  RoutingID: "IDENT"`)
	assert.Contains(t, out, "Fault: temp-failure")
	assert.Contains(t, out, "HANDSHAKE_FAILED_AUTH")
	assert.Contains(t, out, "Message: broken pipe")
}

func TestRunViewFiltered(t *testing.T) {
	path := writeLog(t, sampleEvents())
	f, err := FilterOptions{Layer: "zap", Category: "message"}.Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, f, &buf))
	out := buf.String()

	assert.Contains(t, out, "REQUEST")
	assert.Contains(t, out, "REPLY")
	assert.NotContains(t, out, "Control: GO")
	assert.NotContains(t, out, "broken pipe")
}

func TestFilterOptionsBuild(t *testing.T) {
	f, err := FilterOptions{
		ConnID: "abc", Layer: "Handshake", Direction: "OUT", Category: "state",
		Role: "client", Mechanism: "curve", TimeStart: "2026-03-04T10:00:00Z",
	}.Build()
	require.NoError(t, err)
	assert.Equal(t, "abc", f.ConnectionID)
	assert.Equal(t, log.LayerHandshake, *f.Layer)
	assert.Equal(t, log.DirectionOut, *f.Direction)
	assert.Equal(t, log.CategoryState, *f.Category)
	assert.Equal(t, log.RoleClient, *f.Role)
	assert.Equal(t, "CURVE", f.Mechanism)
	require.NotNil(t, f.TimeStart)
	assert.Nil(t, f.TimeEnd)

	for _, bad := range []FilterOptions{
		{Layer: "wire"},
		{Direction: "sideways"},
		{Category: "snapshot"},
		{Role: "device"},
		{TimeEnd: "yesterday"},
	} {
		_, err := bad.Build()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestRunExportJSONL(t *testing.T) {
	path := writeLog(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "jsonl", log.Filter{}, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)

	var e log.Event
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &e))
	require.NotNil(t, e.ZAP)
	assert.Equal(t, "300", e.ZAP.StatusCode)
}

func TestRunExportCSV(t *testing.T) {
	path := writeLog(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "csv", log.Filter{}, &buf))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"2026-03-04T10:15:32.125456Z", "abc12345-6789-0123", "BROKER", "OUT", "ZAP", "MESSAGE",
		"PLAIN", "REPLY", "1", "300", "temp-failure",
	}, rows[3])
}

func TestRunExportUnknownFormat(t *testing.T) {
	path := writeLog(t, sampleEvents())
	err := RunExport(path, "xml", log.Filter{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown format")
}

func TestRunFilter(t *testing.T) {
	path := writeLog(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "zap.mlog")
	f, err := FilterOptions{ConnID: "abc12345-6789-0123"}.Build()
	require.NoError(t, err)

	n, err := RunFilter(path, out, f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r, err := log.NewReader(out)
	require.NoError(t, err)
	defer r.Close()
	events, err := r.ReadAll()
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = RunFilter(path, path, log.Filter{})
	assert.Error(t, err)
}

func TestCollectStats(t *testing.T) {
	path := writeLog(t, sampleEvents())

	s, err := CollectStats(path)
	require.NoError(t, err)
	assert.Equal(t, 5, s.TotalEvents)
	assert.Equal(t, 2, len(s.Connections))
	assert.Equal(t, 1, s.Errors)
	assert.Equal(t, 3, s.ByLayer[log.LayerZAP])
	assert.Equal(t, map[string]int{"300": 1}, s.Statuses)
	assert.Equal(t, map[string]int{"temp-failure": 1}, s.Faults)
	assert.Equal(t, map[string]int{"GO": 1}, s.Controls)
	assert.Equal(t, map[string]int{"HANDSHAKE_FAILED_AUTH": 1}, s.Handshakes)
	assert.Equal(t, 4*time.Millisecond, s.End.Sub(s.Start))

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	assert.Contains(t, buf.String(), "Total Events: 5")
	assert.Contains(t, buf.String(), "temp-failure:")
}

func TestMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "nope.mlog"), log.Filter{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to open log file")
}
