package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// unitShift maps a size suffix to its power-of-two shift. "M", "MB" and
// "MiB" all mean 1<<20, the way xfs tools print sizes.
var unitShift = map[string]uint{
	"":  0,
	"B": 0,
	"K": 10,
	"M": 20,
	"G": 30,
	"T": 40,
	"P": 50,
}

// ParseSize parses a size such as "512", "4K", "1.5G" or "100MiB" into
// bytes. Suffixes are case-insensitive powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	end := len(s)
	for end > 0 && isUnitByte(s[end-1]) {
		end--
	}
	num, unit := strings.TrimSpace(s[:end]), strings.ToUpper(s[end:])
	unit = strings.TrimSuffix(strings.TrimSuffix(unit, "IB"), "B")
	shift, ok := unitShift[unit]
	if !ok || num == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	if n, err := strconv.ParseInt(num, 10, 64); err == nil {
		if n > math.MaxInt64>>shift || n < math.MinInt64>>shift {
			return 0, fmt.Errorf("invalid size: %q overflows", s)
		}
		return n << shift, nil
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	v := f * float64(uint64(1)<<shift)
	if v >= math.MaxInt64 || v <= math.MinInt64 {
		return 0, fmt.Errorf("invalid size: %q overflows", s)
	}
	return int64(v), nil
}

func isUnitByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ParseBytes is ParseSize for quantities that cannot be negative.
func ParseBytes(s string) (uint64, error) {
	n, err := ParseSize(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size: %q is negative", s)
	}
	return uint64(n), nil
}
