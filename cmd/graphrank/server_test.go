package graphrank

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/graphrank/pkg/config"
)

func parquetFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var files []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".parquet" {
			files = append(files, e.Name())
		}
	}
	return files
}

func TestBuildLoggerWithoutTelemetryPath(t *testing.T) {
	logger, errorSink := buildLogger(&config.Config{
		Log: config.LogConfig{Level: "error", Format: "text"},
	})

	require.NotNil(t, logger)
	assert.Nil(t, errorSink)
}

func TestBuildLoggerFlushDrainsBufferedErrors(t *testing.T) {
	dir := t.TempDir()
	logger, errorSink := buildLogger(&config.Config{
		Log:       config.LogConfig{Level: "error", Format: "text"},
		Telemetry: config.TelemetryConfig{ParquetPath: dir},
	})
	require.NotNil(t, errorSink)

	// A partial batch stays in memory until someone flushes it, which is
	// what the shutdown path must do.
	logger.Error("store down", "group_id", "tenant-a")
	assert.Empty(t, parquetFiles(t, dir))

	require.NoError(t, errorSink.Flush())
	assert.Len(t, parquetFiles(t, dir), 1)
}
