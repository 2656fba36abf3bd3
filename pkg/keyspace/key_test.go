package keyspace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyCompare(t *testing.T) {
	a := Key{0x00, 0x01}
	b := Key{0x00, 0x02}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, -1, MinKey.Compare(a))
}

func TestKeyHexRoundTrip(t *testing.T) {
	k := Key{0x00, 0x00, 0x00, 0x06, 0x7F, 0x00, 0x00, 0x32, 0xBE, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x70, 0xB6}

	s := k.String()
	assert.Equal(t, "000000067F000032BE0000400000000070B6", s)

	parsed, err := ParseKey(s)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	// lowercase input is accepted
	parsed, err = ParseKey(strings.ToLower(s))
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestParseKeyErrors(t *testing.T) {
	_, err := ParseKey("1234")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseKey(strings.Repeat("ZZ", KeySize))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestRangeContains(t *testing.T) {
	start := Key{0x10}
	end := Key{0x20}
	r := Range{Start: start, End: end}

	assert.True(t, r.Contains(start), "start is inclusive")
	assert.False(t, r.Contains(end), "end is exclusive")
	assert.True(t, r.Contains(Key{0x15}))
	assert.False(t, r.Contains(Key{0x05}))
	assert.False(t, r.Contains(Key{0x25}))
}

func TestRangeRoundTrip(t *testing.T) {
	r := Range{Start: Key{0x10}, End: Key{0x20}}

	parsed, err := ParseRange(r.String())
	require.NoError(t, err)
	assert.Equal(t, r, parsed)
}

func TestParseRangeErrors(t *testing.T) {
	_, err := ParseRange("nodash")
	assert.ErrorIs(t, err, ErrInvalidRange)

	// start must be strictly below end
	k := Key{0x10}
	_, err = ParseRange(k.String() + "-" + k.String())
	assert.ErrorIs(t, err, ErrInvalidRange)
}
