package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bamsammich/xfsirecover/internal/stats"
)

// FormatETA renders a remaining-time estimate as "1h:02m:03s". Negative
// estimates clamp to zero.
func FormatETA(d time.Duration) string {
	h, m, s := splitHMS(d)
	return fmt.Sprintf("%dh:%02dm:%02ds", h, m, s)
}

// FormatCount formats an integer with comma separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatInodeRate formats an inodes-per-second scan rate.
func FormatInodeRate(perSec float64) string {
	switch {
	case perSec <= 0:
		return "0 ino/s"
	case perSec < 10:
		return fmt.Sprintf("%.1f ino/s", perSec)
	}
	return FormatCount(int64(perSec)) + " ino/s"
}

// FormatPercent formats a 0-100 percentage with two decimals.
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.2f%%", pct)
}

func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}

// FormatDuration formats elapsed time concisely: "42s", "3m 17s", "1h 02m 03s".
func FormatDuration(d time.Duration) string {
	h, m, s := splitHMS(d)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func splitHMS(d time.Duration) (h, m, s int64) {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	return secs / 3600, secs / 60 % 60, secs % 60
}
