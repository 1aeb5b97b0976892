package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitLoggersWritesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLoggers(dir))
	t.Cleanup(InitNop)

	SystemLogger.Info("system ready")
	ErrorLogger.Error("boom")
	SyncLoggers()

	for _, name := range []string{"system.log", "errors.log"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NotEmpty(t, data, name)
	}
}
