package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/tracelet/internal/config"
)

func TestDefault(t *testing.T) {
	opts := config.Default()
	assert.False(t, opts.DynamicShapes)
	assert.True(t, opts.SpecializeScalars)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dynamic_shapes: true\n"), 0o644))

	opts, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, opts.DynamicShapes)
	// Unset fields keep their defaults.
	assert.True(t, opts.SpecializeScalars)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dynamic_shapes: [oops\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}
