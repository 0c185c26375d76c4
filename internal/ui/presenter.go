package ui

import (
	"io"

	"github.com/bamsammich/xfsirecover/internal/stats"
)

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
	// Summary returns the final summary line.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      *stats.Collector
	IsTTY      bool
	Width      int // terminal columns, used only when IsTTY
	Quiet      bool
	Verbose    bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // quiet and plain presenters share no concrete type
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{stats: cfg.Stats}
	}
	return &plainPresenter{
		w:          cfg.Writer,
		errW:       cfg.ErrWriter,
		stats:      cfg.Stats,
		tty:        cfg.IsTTY,
		width:      cfg.Width,
		verbose:    cfg.Verbose,
		noProgress: cfg.NoProgress,
	}
}
