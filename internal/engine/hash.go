package engine

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HashFile returns the hex BLAKE3 digest of the file at path. buf is used
// as the read buffer; nil allocates one.
func HashFile(path string, buf []byte) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := hashReader(f, buf)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

func hashReader(r io.Reader, buf []byte) (string, error) {
	if len(buf) == 0 {
		buf = make([]byte, 32*1024)
	}
	h := blake3.New()
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
