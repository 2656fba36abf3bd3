package layer

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/em3ndez/neon/pkg/ident"
	"github.com/em3ndez/neon/pkg/keyspace"
	"github.com/em3ndez/neon/pkg/lsn"
)

// SummarySize is the encoded size of the summary, at the start of block 0.
// The rest of the block is zero padding.
const SummarySize = 96

// Summary is the fixed-layout header stored at block 0 of an image layer
// file. It is written once by the writer's Finish and immutable thereafter.
type Summary struct {
	// Magic identifies the file as an image layer. Always ImageFileMagic.
	Magic         uint16
	FormatVersion uint16

	TenantID   ident.TenantID
	TimelineID ident.TimelineID
	KeyRange   keyspace.Range
	LSN        lsn.LSN

	// IndexStartBlk is the block where the index region begins.
	IndexStartBlk uint32
	// IndexRootBlk is the block of the B-tree root, within the index region.
	IndexRootBlk uint32
	// The values region needs no pointer: it always starts on block 1.
}

// Encode serializes the summary with a trailing xxhash64 checksum.
func (s *Summary) Encode() []byte {
	buf := make([]byte, SummarySize)

	binary.LittleEndian.PutUint16(buf[0:2], s.Magic)
	binary.LittleEndian.PutUint16(buf[2:4], s.FormatVersion)
	copy(buf[4:20], s.TenantID[:])
	copy(buf[20:36], s.TimelineID[:])
	copy(buf[36:54], s.KeyRange.Start[:])
	copy(buf[54:72], s.KeyRange.End[:])
	binary.LittleEndian.PutUint64(buf[72:80], uint64(s.LSN))
	binary.LittleEndian.PutUint32(buf[80:84], s.IndexStartBlk)
	binary.LittleEndian.PutUint32(buf[84:88], s.IndexRootBlk)

	checksum := xxhash.Sum64(buf[:88])
	binary.LittleEndian.PutUint64(buf[88:96], checksum)

	return buf
}

// DecodeSummary parses a summary from the prefix of block 0, validating the
// checksum, magic and format version. Identity fields are the caller's to
// compare.
func DecodeSummary(data []byte) (*Summary, error) {
	if len(data) < SummarySize {
		return nil, fmt.Errorf("summary too short: %d bytes, expected %d", len(data), SummarySize)
	}

	checksum := binary.LittleEndian.Uint64(data[88:96])
	if expected := xxhash.Sum64(data[:88]); checksum != expected {
		return nil, fmt.Errorf("summary checksum mismatch: file has %x, calculated %x",
			checksum, expected)
	}

	s := &Summary{
		Magic:         binary.LittleEndian.Uint16(data[0:2]),
		FormatVersion: binary.LittleEndian.Uint16(data[2:4]),
		LSN:           lsn.LSN(binary.LittleEndian.Uint64(data[72:80])),
		IndexStartBlk: binary.LittleEndian.Uint32(data[80:84]),
		IndexRootBlk:  binary.LittleEndian.Uint32(data[84:88]),
	}
	copy(s.TenantID[:], data[4:20])
	copy(s.TimelineID[:], data[20:36])
	copy(s.KeyRange.Start[:], data[36:54])
	copy(s.KeyRange.End[:], data[54:72])

	if s.Magic != ImageFileMagic {
		return nil, fmt.Errorf("invalid magic %#x, expected %#x: not an image layer file",
			s.Magic, ImageFileMagic)
	}
	if s.FormatVersion != StorageFormatVersion {
		return nil, fmt.Errorf("unsupported format version %d, expected %d",
			s.FormatVersion, StorageFormatVersion)
	}

	return s, nil
}
