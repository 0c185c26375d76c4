// Package filter parses human-readable sizes and decides which candidate
// files are worth extracting.
package filter

import "math"

// Verdict is the outcome of applying a SizePolicy to a candidate.
type Verdict int

const (
	// Accept means the file should be extracted.
	Accept Verdict = iota
	// TooSmall means the file is below the configured minimum.
	TooSmall
	// Oversized means the file meets or exceeds the cutoff and is only
	// reported.
	Oversized
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case TooSmall:
		return "too-small"
	case Oversized:
		return "oversized"
	default:
		return "unknown"
	}
}

// DefaultCutoff is the size at which extraction stops without an explicit
// override.
const DefaultCutoff = 1 << 30 // 1 GiB

// NoCutoff is the Cutoff used when the size cutoff is turned off. No
// declared inode size reaches it.
const NoCutoff = math.MaxUint64

// SizePolicy gates extraction on the declared file size.
type SizePolicy struct {
	// Cutoff: files of this size or larger are not extracted. A zero
	// cutoff rejects every file; NoCutoff accepts every size.
	Cutoff uint64
	// Min: files smaller than this are skipped silently. Zero disables
	// the minimum.
	Min uint64
}

// Classify returns the verdict for a file of the given size.
func (p SizePolicy) Classify(size uint64) Verdict {
	if size >= p.Cutoff {
		return Oversized
	}
	if p.Min > 0 && size < p.Min {
		return TooSmall
	}
	return Accept
}
