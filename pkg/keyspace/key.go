// Package keyspace defines the fixed-width key type used by the layered
// storage engine and half-open ranges over it. Keys are ordered
// byte-lexicographically.
package keyspace

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the width of a key in bytes.
const KeySize = 18

var (
	// ErrInvalidKey is returned when parsing a malformed key string
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidRange is returned when parsing a malformed key range
	ErrInvalidRange = errors.New("invalid key range")
)

// Key is a fixed-width storage key.
type Key [KeySize]byte

// MinKey is the smallest possible key.
var MinKey = Key{}

// Compare returns -1, 0 or 1 if k is less than, equal to or greater than other.
func (k Key) Compare(other Key) int {
	return bytes.Compare(k[:], other[:])
}

// String returns the key as an uppercase hex string, the form used in
// layer file names.
func (k Key) String() string {
	return strings.ToUpper(hex.EncodeToString(k[:]))
}

// ParseKey parses a key from its hex representation.
func ParseKey(s string) (Key, error) {
	var k Key
	if len(s) != KeySize*2 {
		return k, fmt.Errorf("%w: expected %d hex digits, got %d", ErrInvalidKey, KeySize*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	copy(k[:], b)
	return k, nil
}

// Range is a half-open key interval [Start, End).
type Range struct {
	Start Key
	End   Key
}

// Contains reports whether key falls inside the range.
func (r Range) Contains(key Key) bool {
	return r.Start.Compare(key) <= 0 && key.Compare(r.End) < 0
}

// String returns the range in "<start>-<end>" form.
func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.Start, r.End)
}

// ParseRange parses a range from its "<start>-<end>" form.
func ParseRange(s string) (Range, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	start, err := ParseKey(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad start key: %v", ErrInvalidRange, err)
	}
	end, err := ParseKey(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w: bad end key: %v", ErrInvalidRange, err)
	}
	if start.Compare(end) >= 0 {
		return Range{}, fmt.Errorf("%w: start %s not below end %s", ErrInvalidRange, start, end)
	}
	return Range{Start: start, End: end}, nil
}
