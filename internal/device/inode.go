// Package device reads raw XFS inode headers straight off a block device or
// image file.
package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// InodeMagic is the big-endian "IN" at the start of every XFS dinode.
	InodeMagic = 0x494E

	// CoreSize is the length of the dinode core header that DecodeInode
	// understands. The on-disk inode record is larger; the rest is fork data.
	CoreSize = 96
)

// ErrShortInode is returned when fewer than CoreSize bytes are available.
var ErrShortInode = errors.New("short inode header")

// Inode is the subset of the dinode core the recovery scan looks at.
// Multi-byte fields are already converted to host order.
type Inode struct {
	Magic    uint16
	Mode     uint16
	Version  uint8
	Format   uint8
	Size     uint64
	NBlocks  uint64
	NExtents uint32

	// Raw is the undecoded header as read from disk.
	Raw [CoreSize]byte
}

// DecodeInode extracts the dinode core fields from buf. Offsets follow the
// on-disk xfs_dinode_core layout, which is big-endian on every platform.
func DecodeInode(buf []byte) (Inode, error) {
	if len(buf) < CoreSize {
		return Inode{}, fmt.Errorf("%w: have %d bytes, need %d", ErrShortInode, len(buf), CoreSize)
	}

	var ino Inode
	copy(ino.Raw[:], buf[:CoreSize])

	ino.Magic = binary.BigEndian.Uint16(buf[0:2])
	ino.Mode = binary.BigEndian.Uint16(buf[2:4])
	ino.Version = buf[4]
	ino.Format = buf[5]
	ino.Size = binary.BigEndian.Uint64(buf[56:64])
	ino.NBlocks = binary.BigEndian.Uint64(buf[64:72])
	ino.NExtents = binary.BigEndian.Uint32(buf[76:80])
	return ino, nil
}

// IsRegular reports whether the mode describes a regular file.
func (i Inode) IsRegular() bool {
	return uint32(i.Mode)&unix.S_IFMT == unix.S_IFREG
}

// IsCandidate reports whether the inode looks like a recoverable regular
// file: valid magic, non-zero size, regular file type.
func (i Inode) IsCandidate() bool {
	return i.Magic == InodeMagic && i.Size != 0 && i.IsRegular()
}

// Perm returns the permission bits recorded in the inode mode.
func (i Inode) Perm() os.FileMode {
	return os.FileMode(i.Mode) & os.ModePerm
}
