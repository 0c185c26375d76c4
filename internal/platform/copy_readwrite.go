package platform

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// ReadError wraps a failure reading the source.
type ReadError struct {
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read at %d: %v", e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a failure writing the destination.
type WriteError struct {
	Offset int64
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write at %d: %v", e.Offset, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// CopyRange copies Length bytes from Src at SrcOffset to Dst at DstOffset
// using pread/pwrite through the transfer buffer. A zero-length read ends the
// copy early without error.
//
// A read error stops the copy. A write error does not: the rest of that
// chunk is dropped, copying carries on with the next one, and the first
// *WriteError is returned once the range is done.
func CopyRange(params CopyParams) (CopyResult, error) {
	buf := params.Buffer
	if len(buf) == 0 {
		buf = NewBuffer()
	}
	ctx := params.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var result CopyResult
	srcRawFd := int(params.Src.Fd()) //nolint:gosec // G115: fd conversion is safe for file descriptors
	dstRawFd := int(params.Dst.Fd()) //nolint:gosec // G115: fd conversion is safe for file descriptors

	srcOff := params.SrcOffset
	dstOff := params.DstOffset
	remaining := params.Length
	var writeErr error

	for remaining > 0 {
		toRead := len(buf)
		if remaining < int64(toRead) {
			toRead = int(remaining)
		}
		if params.Limiter != nil {
			if err := waitN(ctx, params.Limiter, toRead); err != nil {
				return result, errors.Join(writeErr, err)
			}
		}

		n, err := unix.Pread(srcRawFd, buf[:toRead], srcOff)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return result, errors.Join(writeErr, &ReadError{Offset: srcOff, Err: err})
		}
		if n == 0 {
			result.EOF = true
			break
		}
		result.BytesRead += int64(n)

		written, err := pwriteFull(func(b []byte, off int64) (int, error) {
			return unix.Pwrite(dstRawFd, b, off)
		}, buf[:n], dstOff)
		result.BytesWritten += int64(written)
		if err != nil && writeErr == nil {
			writeErr = &WriteError{Offset: dstOff + int64(written), Err: err}
		}

		srcOff += int64(n)
		dstOff += int64(n)
		remaining -= int64(n)
	}

	return result, writeErr
}

// pwriteFull writes all of p at off through pwrite, retrying short writes.
// It returns how many bytes landed before the first failure.
func pwriteFull(pwrite func([]byte, int64) (int, error), p []byte, off int64) (int, error) {
	written := 0
	for written < len(p) {
		w, err := pwrite(p[written:], off+int64(written))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return written, err
		}
		if w <= 0 {
			return written, io.ErrShortWrite
		}
		written += w
	}
	return written, nil
}

// waitN blocks until the limiter admits n bytes. Requests larger than the
// burst are split.
func waitN(ctx context.Context, l *rate.Limiter, n int) error {
	burst := l.Burst()
	if burst <= 0 || l.Limit() == rate.Inf {
		return nil
	}
	for n > 0 {
		step := min(n, burst)
		if err := l.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// NewBWLimiter creates a rate.Limiter that caps read throughput to
// bytesPerSec. The burst is set to 1 MB to allow natural read-size chunks
// through without unnecessary blocking on small reads.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}
