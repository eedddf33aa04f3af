package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/tracelet/internal/cli"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
options:
  dynamic_shapes: true
calls:
  - op: add
    args:
      - const: 1
      - const: 2
`)
	sc, err := cli.LoadScenario(path)
	require.NoError(t, err)
	require.NotNil(t, sc.Options)
	assert.True(t, sc.Options.DynamicShapes)
	require.Len(t, sc.Calls, 1)
	assert.Equal(t, "add", sc.Calls[0].Op)
	assert.Len(t, sc.Calls[0].Args, 2)
}

func TestLoadScenarioMalformed(t *testing.T) {
	path := writeScenario(t, "calls: [}")
	_, err := cli.LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scenario")
}

func TestInspectRejectsAmbiguousValueSpec(t *testing.T) {
	// A spec setting two variant fields is rejected, and the failure is
	// reported per call rather than aborting the replay.
	path := writeScenario(t, `
calls:
  - op: add
    args:
      - {const: 1, none: true}
      - const: 2
`)
	out, err := runCommand(t, "inspect", "--no-color", path)
	require.NoError(t, err)
	assert.Contains(t, out, "exactly one variant field")
}

func TestInspectUnknownOperation(t *testing.T) {
	path := writeScenario(t, `
calls:
  - op: frobnicate
    args: []
`)
	out, err := runCommand(t, "inspect", "--no-color", path)
	require.NoError(t, err)
	assert.Contains(t, out, `unknown operation "frobnicate"`)
}
