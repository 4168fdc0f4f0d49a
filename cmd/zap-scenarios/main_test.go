package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-zap/internal/scenario"
)

func TestLoadScenariosDefaultsToBuiltin(t *testing.T) {
	scs, source, err := loadScenarios("")
	require.NoError(t, err)
	assert.Equal(t, "built-in", source)
	assert.NotEmpty(t, scs)
}

func TestLoadScenariosFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.yaml"), []byte("id: X-1\nname: x\nmechanism: NULL\n"), 0o644))

	scs, source, err := loadScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, source)
	require.Len(t, scs, 1)
	assert.Equal(t, "X-1", scs[0].ID)
}

func TestListScenarios(t *testing.T) {
	var buf bytes.Buffer
	listScenarios(&buf, []*scenario.Scenario{{ID: "NULL-01", Name: "accepted", Mechanism: "NULL"}})
	assert.Contains(t, buf.String(), "NULL-01")
	assert.Contains(t, buf.String(), "none")
	assert.Contains(t, buf.String(), "1 scenarios")
}

func TestShellLookup(t *testing.T) {
	scs := []*scenario.Scenario{{ID: "A"}, {ID: "B"}}
	s := &Shell{scs: scs}
	assert.Len(t, s.lookup("all"), 2)
	assert.Equal(t, "B", s.lookup("B")[0].ID)
	assert.Nil(t, s.lookup("C"))
}
