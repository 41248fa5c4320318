package setup

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/conductor/internal/settings"
)

func TestRun_WritesLoadableSettings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "project")

	path, err := Run(dir, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conductor.yaml"), path)

	prov, err := settings.Open(path, settings.WithLogOutput(io.Discard))
	require.NoError(t, err)
	defer prov.Close()

	r, err := prov.GetResource("LST", time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "urn:lsasaf:lst:Euro:202401020300", r.URN())
	_, err = prov.TaskConfig("ndvi")
	assert.NoError(t, err)
}

func TestRun_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conductor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conductor: {}\n"), 0o644))

	_, err := Run(dir, false)
	assert.Error(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "conductor: {}\n", string(content))

	_, err = Run(dir, true)
	require.NoError(t, err)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "servers:")
}
