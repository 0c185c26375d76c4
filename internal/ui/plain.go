package ui

import (
	"fmt"
	"io"

	"github.com/bamsammich/xfsirecover/internal/stats"
)

// plainPresenter prints one line per notable inode to stdout and scan
// progress to stderr. On a terminal the progress is a single status line
// redrawn in place; otherwise each report is its own line.
type plainPresenter struct {
	w          io.Writer
	errW       io.Writer
	stats      *stats.Collector
	tty        bool
	width      int
	verbose    bool
	noProgress bool

	statusShown bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	for ev := range events {
		p.handleEvent(ev)
	}
	p.clearStatus()
	return nil
}

func (p *plainPresenter) handleEvent(ev Event) {
	switch ev.Type {
	case ScanStarted:
		if p.verbose {
			p.clearStatus()
			fmt.Fprintf(p.errW, "scanning inodes %d to %d\n", ev.Current, ev.Stop)
		}
	case InodeFound:
		p.clearStatus()
		fmt.Fprintf(p.w, "ino %d  %s\n", ev.Inode, FormatBytes(int64(ev.Size))) //nolint:gosec // G115: display only
	case InodeRecovered:
		if ev.Error != nil {
			p.clearStatus()
			fmt.Fprintf(p.errW, "ino %d: partial copy (%s of %d bytes): %v\n",
				ev.Inode, FormatBytes(ev.Written), ev.Size, ev.Error)
			return
		}
		if p.verbose {
			p.clearStatus()
			fmt.Fprintf(p.w, "ino %d  size %d  written %s  holes %s\n",
				ev.Inode, ev.Size, FormatBytes(ev.Written), FormatBytes(ev.Holes))
		}
	case InodeOversized:
		p.clearStatus()
		fmt.Fprintf(p.errW, "ino %d is pretty large (size %d MB), skipping.\n", ev.Inode, ev.Size>>20)
	case InodeFailed:
		p.clearStatus()
		fmt.Fprintf(p.errW, "ino %d: %v\n", ev.Inode, ev.Error)
	case InodeResumed:
		if p.verbose {
			p.clearStatus()
			fmt.Fprintf(p.w, "ino %d  already recovered\n", ev.Inode)
		}
	case Progress:
		p.printProgress(ev)
	case ScanComplete:
		p.clearStatus()
	}
}

func (p *plainPresenter) printProgress(ev Event) {
	if p.noProgress {
		return
	}
	line := p.progressLine(ev)
	if !p.tty {
		fmt.Fprintf(p.errW, "progress: %s\n", line)
		return
	}
	if p.width > 1 && len(line) >= p.width {
		line = line[:p.width-1]
	}
	fmt.Fprintf(p.errW, "\r%s\x1b[K", line)
	p.statusShown = true
}

func (p *plainPresenter) progressLine(ev Event) string {
	pct := 0.0
	if ev.Stop > 0 {
		pct = float64(ev.Current) * 100 / float64(ev.Stop)
	}
	return fmt.Sprintf("ino %d/%d (%s) %s ETA %s recov %d",
		ev.Current, ev.Stop, FormatPercent(pct),
		FormatInodeRate(ev.Rate), FormatETA(ev.ETA),
		p.stats.Snapshot().FilesRecovered,
	)
}

// clearStatus wipes the status line so the next message starts clean.
func (p *plainPresenter) clearStatus() {
	if !p.statusShown {
		return
	}
	fmt.Fprint(p.errW, "\r\x1b[K")
	p.statusShown = false
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
