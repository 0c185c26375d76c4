package engine

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Hole is an unallocated byte range of a recovered file. Gaps between
// extents are never written, so they end up as holes in the output.
type Hole struct {
	Offset int64
	Length int64
}

// FindHoles walks SEEK_DATA/SEEK_HOLE over the first size bytes of f and
// returns its unallocated ranges. A filesystem that cannot report holes
// yields nil.
func FindHoles(f *os.File, size int64) ([]Hole, error) {
	fd := int(f.Fd()) //nolint:gosec // G115: fd conversion is safe for file descriptors
	var holes []Hole

	for off := int64(0); off < size; {
		data, err := unix.Seek(fd, off, unix.SEEK_DATA)
		switch {
		case errors.Is(err, unix.ENXIO):
			// Nothing but hole up to EOF.
			return append(holes, Hole{Offset: off, Length: size - off}), nil
		case errors.Is(err, unix.EINVAL):
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("seek data at %d: %w", off, err)
		}
		if data >= size {
			return append(holes, Hole{Offset: off, Length: size - off}), nil
		}
		if data > off {
			holes = append(holes, Hole{Offset: off, Length: data - off})
		}

		end, err := unix.Seek(fd, data, unix.SEEK_HOLE)
		switch {
		case errors.Is(err, unix.ENXIO):
			end = size
		case errors.Is(err, unix.EINVAL):
			return nil, nil
		case err != nil:
			return nil, fmt.Errorf("seek hole at %d: %w", data, err)
		}
		off = end
	}
	return holes, nil
}

// HoleBytes sums the lengths of holes.
func HoleBytes(holes []Hole) int64 {
	var n int64
	for _, h := range holes {
		n += h.Length
	}
	return n
}
