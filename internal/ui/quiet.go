package ui

import (
	"fmt"

	"github.com/bamsammich/xfsirecover/internal/stats"
)

// quietPresenter shows nothing while the scan runs. Its summary is empty
// unless inodes were lost, since -q still reports errors.
type quietPresenter struct {
	stats *stats.Collector
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
		// Drained so the engine never blocks on a full channel.
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	if p.stats == nil {
		return ""
	}
	snap := p.stats.Snapshot()
	if snap.FilesFailed == 0 && snap.FilesPartial == 0 {
		return ""
	}
	return fmt.Sprintf("xfs-irecover: %d failed, %d partial of %d recovered",
		snap.FilesFailed, snap.FilesPartial, snap.FilesRecovered)
}
