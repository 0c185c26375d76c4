package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	ScanComplete
	InodeFound
	InodeRecovered
	InodeOversized
	InodeFailed
	InodeResumed
	Progress
)

var typeNames = [...]string{
	ScanStarted:    "ScanStarted",
	ScanComplete:   "ScanComplete",
	InodeFound:     "InodeFound",
	InodeRecovered: "InodeRecovered",
	InodeOversized: "InodeOversized",
	InodeFailed:    "InodeFailed",
	InodeResumed:   "InodeResumed",
	Progress:       "Progress",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the recovery engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Inode     uint64
	Size      uint64 // declared size from the inode core
	Written   int64  // bytes written to the output file
	Holes     int64  // bytes of the output left unallocated
	Error     error

	// Progress and ScanStarted
	Current uint64
	Stop    uint64
	Rate    float64 // inodes per second
	ETA     time.Duration

	// ScanComplete
	Recovered int64
}
