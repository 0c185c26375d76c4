package ui

import (
	"fmt"

	"github.com/bamsammich/xfsirecover/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  recovered 1,204  size 2.1 GiB  scanned 65,536  oversized 3  time 3m 17s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	icon := "✓"
	errs := snap.FilesFailed + snap.FilesPartial
	if errs > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  recovered %s  size %s  scanned %s  candidates %s  oversized %s",
		icon,
		FormatCount(snap.FilesRecovered),
		FormatBytes(snap.BytesCopied),
		FormatCount(snap.InodesScanned),
		FormatCount(snap.Candidates),
		FormatCount(snap.FilesOversized),
	)
	if snap.FilesResumed > 0 {
		base += "  resumed " + FormatCount(snap.FilesResumed)
	}
	base += fmt.Sprintf("  time %s  errors %d", FormatDuration(snap.Elapsed), errs)
	return base
}
