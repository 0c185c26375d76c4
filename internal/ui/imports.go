package ui

import "github.com/bamsammich/xfsirecover/internal/event"

// Event is the engine event type presenters consume.
type Event = event.Event

// Re-export event types for convenience.
const (
	ScanStarted    = event.ScanStarted
	ScanComplete   = event.ScanComplete
	InodeFound     = event.InodeFound
	InodeRecovered = event.InodeRecovered
	InodeOversized = event.InodeOversized
	InodeFailed    = event.InodeFailed
	InodeResumed   = event.InodeResumed
	Progress       = event.Progress
)
