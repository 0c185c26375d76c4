package ui_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/xfsirecover/internal/event"
	"github.com/bamsammich/xfsirecover/internal/ui"
)

// quietWithLogFile mirrors "-q --log FILE": warnings to the terminal,
// everything to the JSON file.
func quietWithLogFile() (*slog.Logger, *bytes.Buffer, *bytes.Buffer) {
	var term, file bytes.Buffer
	textH := slog.NewTextHandler(&term, &slog.HandlerOptions{Level: slog.LevelWarn})
	jsonH := slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(ui.NewMultiHandler(textH, jsonH)), &term, &file
}

func TestMultiHandler_PerHandlerLevels(t *testing.T) {
	t.Parallel()

	logger, term, file := quietWithLogFile()
	logger.Debug("journal opened", "path", "/run/xfs-irecover/ab.db")
	logger.Warn("create output", "inode", 20)

	assert.NotContains(t, term.String(), "journal opened")
	assert.Contains(t, term.String(), "inode=20")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "create output", rec["msg"])
	assert.InDelta(t, 20, rec["inode"], 0)
}

func TestMultiHandler_Enabled(t *testing.T) {
	t.Parallel()

	logger, _, _ := quietWithLogFile()
	h := logger.Handler()
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	warnOnly := ui.NewMultiHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))
	assert.False(t, warnOnly.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, warnOnly.Enabled(context.Background(), slog.LevelError))
}

func TestMultiHandler_AttrsAndGroups(t *testing.T) {
	t.Parallel()

	logger, term, file := quietWithLogFile()
	logger.With("device", "/dev/sdb1").WithGroup("scan").Warn("short header", "inode", 7)

	assert.Contains(t, term.String(), "device=/dev/sdb1")
	assert.Contains(t, term.String(), "scan.inode=7")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &rec))
	assert.Equal(t, "/dev/sdb1", rec["device"])
	group, ok := rec["scan"].(map[string]any)
	require.True(t, ok, "expected group 'scan' in JSON output")
	assert.InDelta(t, 7, group["inode"], 0)
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return assert.AnError }

func TestMultiHandler_HandleJoinsErrors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ok := slog.NewTextHandler(&buf, nil)
	m := ui.NewMultiHandler(failingHandler{ok}, ok)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "scanning approximately 3200 inodes", 0)
	err := m.Handle(context.Background(), r)
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, buf.String(), "scanning approximately 3200 inodes")
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ui.LogEvent(context.Background(), logger, event.Event{
		Type:    event.InodeRecovered,
		Inode:   42,
		Size:    9000,
		Written: 9000,
		Error:   assert.AnError,
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, ui.EventMessage, rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "InodeRecovered", rec["type"])
	assert.InDelta(t, 42, rec["inode"], 0)
	assert.InDelta(t, 9000, rec["written"], 0)
	assert.Equal(t, assert.AnError.Error(), rec["error"])
	assert.NotContains(t, rec, "holes")
	assert.NotContains(t, rec, "rate")
}

func TestLogEvent_Progress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ui.LogEvent(context.Background(), logger, event.Event{
		Type:    event.Progress,
		Current: 512,
		Stop:    1024,
		Rate:    128,
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Progress", rec["type"])
	assert.InDelta(t, 512, rec["current"], 0)
	assert.InDelta(t, 1024, rec["stop"], 0)
	assert.InDelta(t, 128, rec["rate"], 0)
	assert.NotContains(t, rec, "inode")
}

func TestLogEvent_BelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ui.LogEvent(context.Background(), logger, event.Event{Type: event.InodeFound, Inode: 7})
	assert.Empty(t, buf.String())
}
