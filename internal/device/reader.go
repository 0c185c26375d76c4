package device

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader gives positioned access to the device holding the filesystem.
// It performs one read per inode and never caches.
type Reader struct {
	f    *os.File
	path string
	buf  [CoreSize]byte
}

// Open opens the device or image read-only.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", path, err)
	}
	return &Reader{f: f, path: path}, nil
}

// ReadInode reads and decodes the inode header stored at offset.
func (r *Reader) ReadInode(offset int64) (Inode, error) {
	n, err := r.f.ReadAt(r.buf[:], offset)
	if n < CoreSize {
		if err == nil || errors.Is(err, io.EOF) {
			err = ErrShortInode
		}
		return Inode{}, fmt.Errorf("read inode at %d: %w", offset, err)
	}
	return DecodeInode(r.buf[:])
}

// File returns the underlying descriptor for bulk data reads.
func (r *Reader) File() *os.File {
	return r.f
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the device.
func (r *Reader) Close() error {
	return r.f.Close()
}
