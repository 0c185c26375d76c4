package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/xfsirecover/internal/stats"
)

func TestCompletionSummary(t *testing.T) {
	snap := stats.Snapshot{
		InodesScanned:  65536,
		Candidates:     1300,
		FilesRecovered: 1204,
		FilesOversized: 3,
		BytesCopied:    2 << 30,
		Elapsed:        3*time.Minute + 17*time.Second,
	}
	assert.Equal(t,
		"done ✓  recovered 1,204  size 2.0 GiB  scanned 65,536  candidates 1,300  oversized 3  time 3m 17s  errors 0",
		CompletionSummary(snap))
}

func TestCompletionSummaryErrors(t *testing.T) {
	snap := stats.Snapshot{FilesFailed: 1, FilesPartial: 2, FilesResumed: 4}
	s := CompletionSummary(snap)
	assert.Contains(t, s, "done ✗")
	assert.Contains(t, s, "resumed 4")
	assert.Contains(t, s, "errors 3")
}
