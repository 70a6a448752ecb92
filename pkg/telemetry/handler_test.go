package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*ParquetHandler, string) {
	t.Helper()
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(io.Discard, nil), dir)
	require.NoError(t, err)
	return h, dir
}

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

func TestHandlerBuffersOnlyErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	logger := slog.New(h)

	logger.Info("routine", "group_id", "tenant-a")
	logger.Warn("slow", "group_id", "tenant-a")
	assert.Empty(t, h.buffer)

	logger.Error("store down", "group_id", "tenant-a", "request_id", "req-1", "attempts", 3)
	require.Len(t, h.buffer, 1)
	assert.Equal(t, "tenant-a", h.buffer[0].GroupID)
	assert.Equal(t, "req-1", h.buffer[0].RequestID)
	assert.Contains(t, h.buffer[0].Attributes, "attempts")
}

func TestHandlerFlushWritesFile(t *testing.T) {
	h, dir := newTestHandler(t)
	logger := slog.New(h)

	logger.Error("store down", "group_id", "tenant-a")
	require.NoError(t, h.Flush())

	assert.Len(t, parquetFiles(t, dir), 1)
	assert.Empty(t, h.buffer)
}

func TestHandlerFlushEmptyBufferIsNoop(t *testing.T) {
	h, dir := newTestHandler(t)

	require.NoError(t, h.Flush())
	assert.Empty(t, parquetFiles(t, dir))
}

func TestNewTrace(t *testing.T) {
	trace := NewTrace("what changed?", "tenant-a")

	assert.NotEmpty(t, trace.RequestID)
	assert.Equal(t, "tenant-a", trace.GroupID)
	assert.NotNil(t, trace.SeedStrategies)
	assert.NotNil(t, trace.SourceSizes)

	trace.Finish()
	assert.NotEmpty(t, trace.Duration)
}

var _ slog.Handler = (*ParquetHandler)(nil)

func TestHandlerPassesThrough(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()
	assert.False(t, h.Enabled(ctx, slog.LevelDebug))
	assert.True(t, h.Enabled(ctx, slog.LevelError))
}
