// Package lsn defines the logical sequence number: a monotonic 64-bit
// timestamp identifying a point in the storage engine's write history.
package lsn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLSN is returned when parsing a malformed LSN string
var ErrInvalidLSN = errors.New("invalid LSN")

// LSN is a logical sequence number.
type LSN uint64

// String returns the LSN in the traditional "hi/lo" hex form, e.g. "1/4E8A2B0".
func (l LSN) String() string {
	return fmt.Sprintf("%X/%X", uint64(l)>>32, uint32(l))
}

// FileName returns the LSN in the fixed-width hex form used in layer
// file names, e.g. "00000000346BC568".
func (l LSN) FileName() string {
	return fmt.Sprintf("%016X", uint64(l))
}

// Parse parses an LSN from the "hi/lo" form produced by String.
func Parse(s string) (LSN, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLSN, s)
	}
	hi, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidLSN, s, err)
	}
	lo, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidLSN, s, err)
	}
	return LSN(hi<<32 | lo), nil
}

// ParseFileName parses an LSN from the fixed-width hex form used in layer
// file names.
func ParseFileName(s string) (LSN, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("%w: expected 16 hex digits, got %q", ErrInvalidLSN, s)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidLSN, s, err)
	}
	return LSN(v), nil
}

// Range is a half-open LSN interval [Start, End).
type Range struct {
	Start LSN
	End   LSN
}

// Contains reports whether l falls inside the range.
func (r Range) Contains(l LSN) bool {
	return r.Start <= l && l < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}
