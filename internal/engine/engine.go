package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/bamsammich/xfsirecover/internal/device"
	"github.com/bamsammich/xfsirecover/internal/event"
	"github.com/bamsammich/xfsirecover/internal/extent"
	"github.com/bamsammich/xfsirecover/internal/filter"
	"github.com/bamsammich/xfsirecover/internal/platform"
	"github.com/bamsammich/xfsirecover/internal/stats"
	"github.com/bamsammich/xfsirecover/internal/xfsdb"
)

// Oracle answers the metadata questions the scan does not decode itself.
// *xfsdb.Client implements it.
type Oracle interface {
	Superblock() (xfsdb.Superblock, error)
	Extents(inum uint64) (extent.List, error)
}

// Result is the outcome of a recovery run.
type Result struct {
	Stats    stats.Snapshot
	Geometry Geometry
	// Next is the first inode not scanned.
	Next uint64
	Err  error
}

// Run opens the device, starts the debugger and scans, blocking until the
// scan finishes, fails or ctx is cancelled.
func Run(ctx context.Context, cfg Config) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Err: err}
	}

	dev, err := device.Open(cfg.Device)
	if err != nil {
		return Result{Err: err}
	}
	defer dev.Close()

	var opts []xfsdb.Option
	if cfg.Timeout > 0 {
		opts = append(opts, xfsdb.WithTimeout(cfg.Timeout))
	}
	oracle, err := xfsdb.Open(cfg.Debugger, cfg.Device, opts...)
	if err != nil {
		return Result{Err: err}
	}
	defer func() {
		if err := oracle.Close(); err != nil {
			slog.Debug("debugger exit", "error", err)
		}
	}()

	rec, err := NewRecovery(cfg, dev, oracle)
	if err != nil {
		return Result{Err: err}
	}
	return rec.Run(ctx)
}

// Recovery is a single scan over a range of inode numbers.
type Recovery struct {
	cfg     Config
	dev     *device.Reader
	oracle  Oracle
	geo     Geometry
	policy  filter.SizePolicy
	stats   *stats.Collector
	limiter *rate.Limiter
	buf     []byte
	journal *Journal
	now     func() time.Time
}

// NewRecovery reads the superblock through oracle and prepares a scan.
func NewRecovery(cfg Config, dev *device.Reader, oracle Oracle) (*Recovery, error) {
	sb, err := oracle.Superblock()
	if err != nil {
		return nil, fmt.Errorf("read superblock: %w", err)
	}
	geo, err := NewGeometry(sb, cfg.StartInode, cfg.MaxInodes)
	if err != nil {
		return nil, err
	}

	slog.Debug("superblock",
		"dblocks", sb.DBlocks, "blocksize", sb.BlockSize, "inodesize", sb.InodeSize)
	if cfg.MaxInodes == 0 {
		slog.Info(fmt.Sprintf("scanning approximately %d inodes", geo.ICount))
	}

	r := &Recovery{
		cfg:    cfg,
		dev:    dev,
		oracle: oracle,
		geo:    geo,
		policy: filter.SizePolicy{Cutoff: cfg.SizeCutoff, Min: cfg.MinSize},
		stats:  cfg.Stats,
		buf:    platform.NewBuffer(),
		now:    time.Now,
	}
	if r.stats == nil {
		r.stats = stats.NewCollector()
	}
	if cfg.BWLimit > 0 {
		r.limiter = platform.NewBWLimiter(cfg.BWLimit)
	}
	return r, nil
}

// Geometry returns the layout the scan uses.
func (r *Recovery) Geometry() Geometry {
	return r.geo
}

// Run scans [start, stop) one inode at a time. Per-inode problems are
// logged and skipped; an oracle failure or cancellation ends the scan.
func (r *Recovery) Run(ctx context.Context) Result {
	if r.cfg.Journal && !r.cfg.DryRun {
		j, err := OpenJournal(r.cfg.Device, r.cfg.OutputDir)
		if err != nil {
			return Result{Stats: r.stats.Snapshot(), Geometry: r.geo, Err: fmt.Errorf("open journal: %w", err)}
		}
		r.journal = j
		defer func() {
			if err := j.Close(); err != nil {
				slog.Warn("close journal", "error", err)
			}
			r.journal = nil
		}()
		slog.Debug("journal opened", "path", j.Path(), "run", j.RunID())
	}

	start := r.cfg.StartInode
	if r.cfg.Resume && r.journal != nil {
		if cur, ok := r.journal.Cursor(); ok && cur > start {
			slog.Info("resuming scan", "inode", cur)
			start = cur
		}
	}
	stop := r.geo.StopInode

	r.stats.SetStopInode(stop)
	r.stats.SetCursor(start)
	r.emit(ctx, event.Event{Type: event.ScanStarted, Current: start, Stop: stop})

	progress := stats.NewProgress(start, stop, r.now())
	var err error
	inum := start
	for ; inum < stop; inum++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("scan interrupted at inode %d: %w", inum, ctxErr)
			break
		}
		if rep, ok := progress.Observe(inum, r.now()); ok {
			r.emit(ctx, event.Event{
				Type:    event.Progress,
				Current: rep.Current,
				Stop:    rep.Stop,
				Rate:    rep.Rate,
				ETA:     rep.ETA,
			})
			r.saveCursor(inum)
		}
		r.stats.SetCursor(inum)

		off, ok := r.geo.Offset(inum)
		if !ok {
			slog.Warn("inode offset out of range, stopping", "inode", inum)
			break
		}
		if err = r.scanInode(ctx, inum, off); err != nil {
			break
		}
	}

	r.stats.SetCursor(inum)
	r.saveCursor(inum)

	snap := r.stats.Snapshot()
	r.emit(ctx, event.Event{
		Type:      event.ScanComplete,
		Current:   inum,
		Stop:      stop,
		Recovered: snap.FilesRecovered,
	})
	return Result{Stats: snap, Geometry: r.geo, Next: inum, Err: err}
}

// scanInode handles one inode slot. Only oracle failures are returned.
func (r *Recovery) scanInode(ctx context.Context, inum uint64, off int64) error {
	ino, err := r.dev.ReadInode(off)
	r.stats.AddInodesScanned(1)
	if err != nil {
		if errors.Is(err, device.ErrShortInode) {
			slog.Debug("inode beyond end of device", "inode", inum)
		} else {
			slog.Warn("read inode", "inode", inum, "error", err)
		}
		return nil
	}
	if !ino.IsCandidate() {
		return nil
	}
	r.stats.AddCandidates(1)

	extents, err := r.oracle.Extents(inum)
	if err != nil {
		return fmt.Errorf("query extents of inode %d: %w", inum, err)
	}
	if len(extents) == 0 {
		slog.Debug("no extents", "inode", inum, "size", ino.Size)
		r.stats.AddFilesSkipped(1)
		return nil
	}

	switch r.policy.Classify(ino.Size) {
	case filter.Oversized:
		r.stats.AddFilesOversized(1)
		r.emit(ctx, event.Event{Type: event.InodeOversized, Inode: inum, Size: ino.Size})
		return nil
	case filter.TooSmall:
		r.stats.AddFilesSkipped(1)
		return nil
	case filter.Accept:
	}

	if r.cfg.DryRun {
		r.emit(ctx, event.Event{Type: event.InodeFound, Inode: inum, Size: ino.Size})
		return nil
	}

	if r.alreadyRecovered(inum) {
		r.stats.AddFilesResumed(1)
		r.emit(ctx, event.Event{Type: event.InodeResumed, Inode: inum, Size: ino.Size})
		return nil
	}

	r.extract(ctx, inum, ino, extents)
	return nil
}

// alreadyRecovered reports whether a previous run wrote inum and the output
// is unchanged since.
func (r *Recovery) alreadyRecovered(inum uint64) bool {
	if !r.cfg.Resume || r.journal == nil {
		return false
	}
	e, ok := r.journal.Lookup(inum)
	if !ok {
		return false
	}
	sum, err := HashFile(r.outputPath(inum), r.buf)
	if err != nil {
		slog.Debug("journaled output unreadable", "inode", inum, "error", err)
		return false
	}
	return sum == e.Hash
}

// extract writes the extents of one inode to output_dir/<inum>.
func (r *Recovery) extract(ctx context.Context, inum uint64, ino device.Inode, extents extent.List) {
	path := r.outputPath(inum)
	out, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, ino.Perm())
	if err != nil {
		slog.Warn("create output", "inode", inum, "error", err)
		r.stats.AddFilesFailed(1)
		r.emit(ctx, event.Event{Type: event.InodeFailed, Inode: inum, Size: ino.Size, Error: err})
		return
	}
	defer func() {
		if err := out.Close(); err != nil {
			slog.Warn("close output", "inode", inum, "error", err)
		}
	}()

	copyErr := r.copyExtents(ctx, out, extents)
	var we *platform.WriteError
	switch {
	case errors.As(copyErr, &we):
		slog.Warn("write output", "inode", inum, "offset", we.Offset, "error", we.Err)
	case copyErr != nil:
		slog.Debug("copy stopped", "inode", inum, "error", copyErr)
	}

	fi, err := out.Stat()
	if err != nil {
		slog.Warn("stat output", "inode", inum, "error", err)
		r.stats.AddFilesFailed(1)
		r.emit(ctx, event.Event{Type: event.InodeFailed, Inode: inum, Size: ino.Size, Error: err})
		return
	}
	written := fi.Size()
	if shouldTruncate(uint64(written), ino.Size, r.cfg.TruncateThreshold) { //nolint:gosec // G115: file sizes are non-negative
		if err := out.Truncate(int64(ino.Size)); err != nil { //nolint:gosec // G115: ino.Size < written
			slog.Warn("truncate output", "inode", inum, "error", err)
		} else {
			written = int64(ino.Size) //nolint:gosec // G115: ino.Size < written
		}
	}

	ev := event.Event{Type: event.InodeRecovered, Inode: inum, Size: ino.Size, Written: written, Error: copyErr}
	if holes, err := FindHoles(out, written); err == nil {
		ev.Holes = HoleBytes(holes)
	}

	r.stats.AddFilesRecovered(1)
	if copyErr != nil {
		r.stats.AddFilesPartial(1)
	} else {
		r.record(inum, ino.Size, out, written)
	}
	r.emit(ctx, ev)
}

// copyExtents transfers every extent in order. Gaps between extents are
// left unwritten. A read failure ends the copy; write failures only lose
// the affected chunks, and the first one is returned after the last extent.
func (r *Recovery) copyExtents(ctx context.Context, out *os.File, extents extent.List) error {
	var writeErr error
	for _, e := range extents {
		src, dst, length, err := e.ByteRange(r.geo.BlockSize)
		if err != nil {
			return errors.Join(writeErr, err)
		}
		res, err := platform.CopyRange(platform.CopyParams{
			Src:       r.dev.File(),
			Dst:       out,
			SrcOffset: src,
			DstOffset: dst,
			Length:    length,
			Buffer:    r.buf,
			Limiter:   r.limiter,
			Ctx:       ctx,
		})
		r.stats.AddBytesCopied(res.BytesWritten)
		var we *platform.WriteError
		if errors.As(err, &we) {
			if writeErr == nil {
				writeErr = we
			}
			err = nil
		}
		if err != nil {
			return errors.Join(writeErr, err)
		}
		if res.EOF {
			slog.Debug("device ended inside extent",
				"start_block", e.StartBlock, "copied", res.BytesWritten, "want", length)
		}
	}
	return writeErr
}

// record journals a complete extraction.
func (r *Recovery) record(inum, size uint64, out *os.File, written int64) {
	if r.journal == nil {
		return
	}
	sum, err := hashReader(io.NewSectionReader(out, 0, written), r.buf)
	if err != nil {
		slog.Warn("hash output", "inode", inum, "error", err)
		return
	}
	if err := r.journal.MarkRecovered(JournalEntry{Inode: inum, Size: size, Written: written, Hash: sum}); err != nil {
		slog.Warn("journal", "inode", inum, "error", err)
	}
}

func (r *Recovery) saveCursor(inum uint64) {
	if r.journal == nil {
		return
	}
	if err := r.journal.SetCursor(inum); err != nil {
		slog.Warn("save scan position", "inode", inum, "error", err)
	}
}

func (r *Recovery) outputPath(inum uint64) string {
	return filepath.Join(r.cfg.OutputDir, strconv.FormatUint(inum, 10))
}

// emit blocks until the event is taken or ctx is done. An event that fits
// in the channel buffer is delivered even after cancellation.
func (r *Recovery) emit(ctx context.Context, e event.Event) {
	if r.cfg.Events == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case r.cfg.Events <- e:
		return
	default:
	}
	select {
	case r.cfg.Events <- e:
	case <-ctx.Done():
	}
}

// shouldTruncate decides whether an output of size cur is cut back to the
// declared size. Small declared sizes are never truncated.
func shouldTruncate(cur, declared, threshold uint64) bool {
	return cur > threshold && declared >= threshold && declared < cur
}
