package xfsdb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bamsammich/xfsirecover/internal/extent"
)

// ErrInsufficientSuperblock is returned when the superblock dump lacks one of
// the fields the scan depends on.
var ErrInsufficientSuperblock = errors.New("insufficient superblock data")

// extentPrefixes mark the data fork extent map line in an inode dump. v5
// filesystems print the u3 form.
var extentPrefixes = []string{"u.bmx[", "u3.bmx["}

// Superblock holds the geometry fields reported by "type sb".
type Superblock struct {
	DBlocks   uint64
	BlockSize uint64
	InodeSize uint64
}

// Superblock dumps the primary superblock and extracts the data block
// count, block size and inode size.
func (c *Client) Superblock() (Superblock, error) {
	out, err := c.run("inode 0\n", "type sb\n", "print\n")
	if err != nil {
		return Superblock{}, err
	}
	return parseSuperblock(out)
}

// Extents dumps inode inum and parses its data fork extent map. A nil list
// with a nil error means the debugger reported no extents.
func (c *Client) Extents(inum uint64) (extent.List, error) {
	out, err := c.run(fmt.Sprintf("inode %d\n", inum), "type inode\n", "print\n")
	if err != nil {
		return nil, err
	}
	return parseExtents(out), nil
}

// run sends each command in turn and returns the response to the last.
func (c *Client) run(cmds ...string) (string, error) {
	var out string
	for _, cmd := range cmds {
		var err error
		if out, err = c.Command(cmd); err != nil {
			return "", err
		}
	}
	return out, nil
}

func parseSuperblock(out string) (Superblock, error) {
	var sb Superblock
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := splitField(line)
		if !ok {
			continue
		}
		switch key {
		case "dblocks":
			sb.DBlocks = parseUintPrefix(value)
		case "blocksize":
			sb.BlockSize = parseUintPrefix(value)
		case "inodesize":
			sb.InodeSize = parseUintPrefix(value)
		}
	}

	if sb.DBlocks == 0 || sb.BlockSize == 0 || sb.InodeSize == 0 {
		return sb, fmt.Errorf("%w: dblocks=%d blocksize=%d inodesize=%d",
			ErrInsufficientSuperblock, sb.DBlocks, sb.BlockSize, sb.InodeSize)
	}
	return sb, nil
}

// splitField splits "key = value". The key runs up to the first whitespace.
func splitField(line string) (key, value string, ok bool) {
	end := strings.IndexAny(line, " \t")
	if end < 0 {
		return "", "", false
	}
	key = line[:end]
	rest := strings.TrimLeft(line[end:], " \t")
	if !strings.HasPrefix(rest, "=") {
		return "", "", false
	}
	return key, strings.TrimLeft(rest[1:], " \t"), true
}

// parseUintPrefix parses the leading number of s the way strtoull does with
// base 0: decimal, 0x hex or leading-zero octal. Trailing text is ignored
// and an unparseable value yields 0.
func parseUintPrefix(s string) uint64 {
	end := 0
	for end < len(s) && isNumberByte(s[end]) {
		end++
	}
	n, err := strconv.ParseUint(s[:end], 0, 64)
	if err != nil {
		return 0
	}
	return n
}

func isNumberByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' || c == 'x' || c == 'X'
}

// parseExtents finds the extent map line, which looks like
//
//	u.bmx[0-1] = [startoff,startblock,blockcount,extentflag] 0:[0,100,3,0] 1:[3,200,1,0]
//
// and parses the records after the bracketed header.
func parseExtents(out string) extent.List {
	var line string
	for _, l := range strings.Split(out, "\n") {
		if hasExtentPrefix(l) {
			line = l
			break
		}
	}
	if line == "" {
		return nil
	}

	key := strings.IndexAny(line, " \t")
	if key < 0 {
		return nil
	}
	rest := strings.TrimLeft(line[key:], " \t")
	if !strings.HasPrefix(rest, "=") {
		return nil
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if !strings.HasPrefix(rest, "[") {
		return nil
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return nil
	}

	return extent.ParseList(strings.Fields(rest[end+1:]))
}

func hasExtentPrefix(line string) bool {
	for _, p := range extentPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
