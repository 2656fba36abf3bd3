package layer

import (
	"strings"
	"testing"

	"github.com/em3ndez/neon/pkg/ident"
	"github.com/em3ndez/neon/pkg/keyspace"
	"github.com/em3ndez/neon/pkg/lsn"
)

func testSummary() Summary {
	return Summary{
		Magic:         ImageFileMagic,
		FormatVersion: StorageFormatVersion,
		TenantID:      ident.GenerateTenantID(),
		TimelineID:    ident.GenerateTimelineID(),
		KeyRange:      keyspace.Range{Start: keyspace.Key{0x01}, End: keyspace.Key{0x02}},
		LSN:           lsn.LSN(0x346BC568),
		IndexStartBlk: 17,
		IndexRootBlk:  3,
	}
}

func TestSummaryRoundTrip(t *testing.T) {
	s := testSummary()

	encoded := s.Encode()
	if len(encoded) != SummarySize {
		t.Fatalf("Encoded summary should be %d bytes, got %d", SummarySize, len(encoded))
	}

	decoded, err := DecodeSummary(encoded)
	if err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if *decoded != s {
		t.Errorf("Summary round trip mismatch:\n got %+v\nwant %+v", *decoded, s)
	}
}

func TestSummaryDecodeFromFullBlock(t *testing.T) {
	// The summary occupies the prefix of block 0; the rest is padding.
	s := testSummary()
	page := make([]byte, 8192)
	copy(page, s.Encode())

	decoded, err := DecodeSummary(page)
	if err != nil {
		t.Fatalf("Failed to decode summary from full block: %v", err)
	}
	if *decoded != s {
		t.Error("Summary decoded from full block mismatch")
	}
}

func TestSummaryChecksumDetectsCorruption(t *testing.T) {
	s := testSummary()
	encoded := s.Encode()
	encoded[40] ^= 0xFF // flip bits inside the key range field

	_, err := DecodeSummary(encoded)
	if err == nil {
		t.Fatal("Corrupted summary should fail to decode")
	}
	if !strings.Contains(err.Error(), "checksum") {
		t.Errorf("Expected a checksum error, got %v", err)
	}
}

func TestSummaryBadMagic(t *testing.T) {
	s := testSummary()
	s.Magic = 0x1234

	_, err := DecodeSummary(s.Encode())
	if err == nil {
		t.Fatal("Summary with wrong magic should fail to decode")
	}
	if !strings.Contains(err.Error(), "magic") {
		t.Errorf("Expected a magic error, got %v", err)
	}
}

func TestSummaryBadVersion(t *testing.T) {
	s := testSummary()
	s.FormatVersion = StorageFormatVersion + 1

	_, err := DecodeSummary(s.Encode())
	if err == nil {
		t.Fatal("Summary with wrong format version should fail to decode")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("Expected a version error, got %v", err)
	}
}

func TestSummaryTooShort(t *testing.T) {
	if _, err := DecodeSummary(make([]byte, 10)); err == nil {
		t.Error("Truncated summary should fail to decode")
	}
}
