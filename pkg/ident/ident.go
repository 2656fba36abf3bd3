// Package ident defines the tenant and timeline identifiers that tie a
// layer file to its owner.
package ident

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// IDSize is the width of a tenant or timeline id in bytes.
const IDSize = 16

// ErrInvalidID is returned when parsing a malformed id string
var ErrInvalidID = errors.New("invalid id")

// TenantID identifies a tenant.
type TenantID [IDSize]byte

// TimelineID identifies a timeline within a tenant.
type TimelineID [IDSize]byte

func (id TenantID) String() string   { return hex.EncodeToString(id[:]) }
func (id TimelineID) String() string { return hex.EncodeToString(id[:]) }

// ParseTenantID parses a tenant id from its hex representation.
func ParseTenantID(s string) (TenantID, error) {
	var id TenantID
	err := parseID(id[:], s)
	return id, err
}

// ParseTimelineID parses a timeline id from its hex representation.
func ParseTimelineID(s string) (TimelineID, error) {
	var id TimelineID
	err := parseID(id[:], s)
	return id, err
}

func parseID(dst []byte, s string) error {
	if len(s) != IDSize*2 {
		return fmt.Errorf("%w: expected %d hex digits, got %d", ErrInvalidID, IDSize*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	copy(dst, b)
	return nil
}

// GenerateTenantID returns a new random tenant id.
func GenerateTenantID() TenantID {
	var id TenantID
	mustRandom(id[:])
	return id
}

// GenerateTimelineID returns a new random timeline id.
func GenerateTimelineID() TimelineID {
	var id TimelineID
	mustRandom(id[:])
	return id
}

func mustRandom(dst []byte) {
	if _, err := rand.Read(dst); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
}
