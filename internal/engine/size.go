package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ParseSize parses a human-readable size string like "4GB" into bytes.
// SI suffixes (KB, MB, GB, TB) are powers of 1000 and IEC suffixes (KiB,
// MiB, GiB, TiB) powers of 1024, matching how removable media is sold.
// A plain number is treated as bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("size must be positive: %s", s)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("size too large: %s", s)
	}
	return int64(n), nil
}

// FormatSize renders a byte count the way ParseSize reads it.
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
