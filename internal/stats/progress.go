package stats

import (
	"math"
	"time"
)

const (
	// DefaultReportInterval is the minimum time between progress reports.
	DefaultReportInterval = 3 * time.Second
	// DefaultReportInodes is the minimum number of inodes between reports.
	DefaultReportInodes = 256
)

// Report is one progress sample of the inode scan.
type Report struct {
	Current   uint64
	Stop      uint64
	Remaining uint64
	// Rate is inodes per second since the previous report.
	Rate float64
	ETA  time.Duration
}

// Percent returns how far the cursor is through the whole inode range,
// counted from inode zero.
func (r Report) Percent() float64 {
	if r.Stop == 0 {
		return 0
	}
	return float64(r.Current) * 100 / float64(r.Stop)
}

// Progress decides when to report scan progress and computes a linear ETA
// from the rate observed since the last report.
type Progress struct {
	stop      uint64
	interval  time.Duration
	minInodes uint64

	lastTime  time.Time
	lastInode uint64
}

// NewProgress starts tracking a scan that begins at start at time now and
// ends before stop.
func NewProgress(start, stop uint64, now time.Time) *Progress {
	return &Progress{
		stop:      stop,
		interval:  DefaultReportInterval,
		minInodes: DefaultReportInodes,
		lastTime:  now,
		lastInode: start,
	}
}

// Observe is called with the current cursor. It returns a report, and
// advances its reference point, only when both the interval and the inode
// threshold have been reached since the last report.
func (p *Progress) Observe(current uint64, now time.Time) (Report, bool) {
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.interval || current < p.lastInode || current-p.lastInode < p.minInodes {
		return Report{}, false
	}

	r := Report{
		Current: current,
		Stop:    p.stop,
		Rate:    float64(current-p.lastInode) / elapsed.Seconds(),
	}
	if p.stop > current {
		r.Remaining = p.stop - current
	}
	if r.Rate > 0 {
		secs := float64(r.Remaining) / r.Rate
		if secs < math.MaxInt64/float64(time.Second) {
			r.ETA = time.Duration(secs * float64(time.Second))
		} else {
			r.ETA = time.Duration(math.MaxInt64)
		}
	}

	p.lastTime = now
	p.lastInode = current
	return r, true
}
