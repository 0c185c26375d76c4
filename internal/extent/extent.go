// Package extent turns the textual extent records printed by xfs_db into
// structured (offset, block, count) triples.
package extent

import (
	"fmt"
	"math"
	"math/bits"
)

// Entry is one contiguous run of filesystem blocks backing part of a file.
// All three fields are in filesystem block units.
type Entry struct {
	StartOffset uint64 // logical block within the file
	StartBlock  uint64 // physical block on the device
	BlockCount  uint64
}

// List is an extent map in the order the debugger emitted it. Consecutive
// entries need not be contiguous; gaps are holes in the file.
type List []Entry

// ParseToken parses a single extent record of the form
// "INDEX:[OFFSET,BLOCK,COUNT,FLAG]". The index prefix is optional and any
// fields after COUNT are ignored, but the closing bracket must be present.
// ok is false when the token is malformed and should be skipped.
func ParseToken(s string) (e Entry, ok bool) {
	i := 0

	// Optional "INDEX:" prefix.
	if i < len(s) && isDigit(s[i]) {
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i >= len(s) || s[i] != ':' {
			return Entry{}, false
		}
		i++
	}

	if i >= len(s) || s[i] != '[' {
		return Entry{}, false
	}
	i++

	var fields [3]uint64
	for f := range fields {
		n, next, ok := parseDecimal(s, i)
		if !ok {
			return Entry{}, false
		}
		fields[f] = n
		i = next

		if i >= len(s) {
			return Entry{}, false
		}
		switch {
		case f < 2 && s[i] == ',':
			i++
		case f == 2 && (s[i] == ',' || s[i] == ']'):
		default:
			return Entry{}, false
		}
	}

	// The record must be closed somewhere after COUNT.
	closed := false
	for ; i < len(s); i++ {
		if s[i] == ']' {
			closed = true
			break
		}
	}
	if !closed {
		return Entry{}, false
	}

	return Entry{
		StartOffset: fields[0],
		StartBlock:  fields[1],
		BlockCount:  fields[2],
	}, true
}

// ParseList parses every token, dropping the malformed ones. A partial list
// is still useful, so one bad record never discards the rest.
func ParseList(tokens []string) List {
	var list List
	for _, tok := range tokens {
		if e, ok := ParseToken(tok); ok {
			list = append(list, e)
		}
	}
	return list
}

// Blocks returns the total number of blocks mapped by the list.
func (l List) Blocks() uint64 {
	var total uint64
	for _, e := range l {
		total += e.BlockCount
	}
	return total
}

// ByteRange converts the extent into byte offsets for the given block size:
// the device offset to read from, the file offset to write to, and the
// number of bytes. It fails if any value does not fit in an int64.
func (e Entry) ByteRange(blockSize uint64) (src, dst, length int64, err error) {
	var ok1, ok2, ok3 bool
	src, ok1 = mulBytes(e.StartBlock, blockSize)
	dst, ok2 = mulBytes(e.StartOffset, blockSize)
	length, ok3 = mulBytes(e.BlockCount, blockSize)
	if !ok1 || !ok2 || !ok3 {
		return 0, 0, 0, fmt.Errorf("extent %+v overflows with block size %d", e, blockSize)
	}
	// The end of either range must be addressable too.
	if src > math.MaxInt64-length || dst > math.MaxInt64-length {
		return 0, 0, 0, fmt.Errorf("extent %+v overflows with block size %d", e, blockSize)
	}
	return src, dst, length, nil
}

func mulBytes(n, blockSize uint64) (int64, bool) {
	hi, lo := bits.Mul64(n, blockSize)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

// parseDecimal reads an unsigned decimal run starting at s[i]. It returns
// the value and the index of the first byte after the run.
func parseDecimal(s string, i int) (uint64, int, bool) {
	start := i
	var n uint64
	for i < len(s) && isDigit(s[i]) {
		d := uint64(s[i] - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, i, false
		}
		n = n*10 + d
		i++
	}
	return n, i, i > start
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
