package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
	assert.True(t, cfg.Color)
	assert.False(t, cfg.StrictBoxes)
	assert.Equal(t, FormatNative, cfg.Tree.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
log:
  level: debug
  development: true
color: false
strict_boxes: true
tree:
  format: standard
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jp2dump.yaml"), []byte(content), 0o644))

	cfg, err := Load(New(dir))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.False(t, cfg.Color)
	assert.True(t, cfg.StrictBoxes)
	assert.Equal(t, FormatStandard, cfg.Tree.Format)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("JP2DUMP_LOG_LEVEL", "error")
	t.Setenv("JP2DUMP_TREE_FORMAT", "standard")

	cfg, err := Load(New(t.TempDir()))
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, FormatStandard, cfg.Tree.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad level", "log:\n  level: loud\n"},
		{"bad tree format", "tree:\n  format: dom\n"},
		{"bad yaml", "log: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "jp2dump.yaml"), []byte(tt.content), 0o644))
			_, err := Load(New(dir))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strict_boxes: true\n"), 0o644))

	v := New(t.TempDir())
	v.SetConfigFile(path)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.True(t, cfg.StrictBoxes)
}
