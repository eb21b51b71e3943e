package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToConfiguredPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := New(true, path)
	require.NoError(t, err)

	logger.Debug("mounted")
	logger.Info("menu ready")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"mounted"`)
	require.Contains(t, string(data), `"logger":"supportchat"`)
	require.Contains(t, string(data), `"msg":"menu ready"`)
}

func TestNewInfoLevelDropsDebug(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := New(false, path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "hidden")
	require.Contains(t, string(data), "shown")
}
