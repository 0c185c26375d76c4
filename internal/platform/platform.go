package platform

import (
	"context"
	"os"

	"golang.org/x/time/rate"
)

// BufferSize is the size of the transfer buffer used by CopyRange.
const BufferSize = 1 << 20 // 1 MiB

// NewBuffer allocates a transfer buffer. Callers keep one and reuse it for
// every CopyRange call.
func NewBuffer() []byte {
	return make([]byte, BufferSize)
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesRead    int64
	BytesWritten int64
	// EOF is set when the source ran out before Length bytes were read.
	EOF bool
}

// CopyParams describes one range to copy from Src to Dst.
type CopyParams struct {
	Src       *os.File
	Dst       *os.File
	SrcOffset int64
	DstOffset int64
	Length    int64

	// Buffer is the reusable transfer buffer. A nil buffer gets a fresh
	// BufferSize allocation.
	Buffer []byte

	// Limiter throttles source reads when set.
	Limiter *rate.Limiter
	Ctx     context.Context //nolint:containedctx // only used for limiter waits
}
