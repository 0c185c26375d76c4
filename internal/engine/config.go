package engine

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"os"
	"time"

	"github.com/bamsammich/xfsirecover/internal/event"
	"github.com/bamsammich/xfsirecover/internal/stats"
	"github.com/bamsammich/xfsirecover/internal/xfsdb"
)

// Config describes one recovery run. It is built once by the caller and
// never modified by the engine.
type Config struct {
	Device    string
	OutputDir string

	StartInode uint64
	// MaxInodes is the number of inodes to scan. Zero scans the whole
	// inode space reported by the superblock.
	MaxInodes uint64

	// SizeCutoff: candidates of this size or larger are reported and
	// skipped. filter.NoCutoff turns the check off.
	SizeCutoff uint64
	// TruncateThreshold: outputs are cut back to the declared size only
	// when both exceed this value.
	TruncateThreshold uint64
	// MinSize: smaller candidates are skipped silently.
	MinSize uint64

	DryRun bool

	Debugger string
	Timeout  time.Duration // per debugger command, zero waits forever
	BWLimit  int64         // device read bytes/sec, zero is unlimited

	Journal bool
	Resume  bool

	Events chan<- event.Event
	Stats  *stats.Collector
}

// Validate checks the fields without which no run can start.
func (c Config) Validate() error {
	if c.Device == "" {
		return errors.New("no device given")
	}
	if c.OutputDir == "" {
		return errors.New("no output directory given")
	}
	fi, err := os.Stat(c.OutputDir)
	if err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("output directory %s is not a directory", c.OutputDir)
	}
	if c.BWLimit < 0 {
		return fmt.Errorf("bandwidth limit must be positive, got %d", c.BWLimit)
	}
	return nil
}

// Geometry is the filesystem layout the scan works from.
type Geometry struct {
	BlockSize uint64
	InodeSize uint64
	// ICount is the approximate number of inode slots on the device.
	ICount    uint64
	StopInode uint64
}

// NewGeometry derives the scan range from the superblock fields.
func NewGeometry(sb xfsdb.Superblock, start, maxInodes uint64) (Geometry, error) {
	if sb.BlockSize == 0 || sb.InodeSize == 0 || sb.DBlocks == 0 {
		return Geometry{}, xfsdb.ErrInsufficientSuperblock
	}

	hi, lo := bits.Mul64(sb.DBlocks, sb.BlockSize)
	var icount uint64
	if hi >= sb.InodeSize {
		icount = math.MaxUint64
	} else {
		icount, _ = bits.Div64(hi, lo, sb.InodeSize)
	}

	g := Geometry{
		BlockSize: sb.BlockSize,
		InodeSize: sb.InodeSize,
		ICount:    icount,
	}
	if maxInodes == 0 {
		maxInodes = icount
	}
	stop, carry := bits.Add64(start, maxInodes, 0)
	if carry != 0 {
		stop = math.MaxUint64
	}
	g.StopInode = stop
	return g, nil
}

// Offset returns the byte offset of inode inum on the device.
func (g Geometry) Offset(inum uint64) (int64, bool) {
	hi, lo := bits.Mul64(inum, g.InodeSize)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}
