// Package layer implements the image layer: a write-once snapshot file
// holding the full value of every key in a key range as of one LSN.
//
// An image layer file has three parts. Block 0 holds the Summary, a fixed
// layout header describing the layer and pointing at the index. The values
// region starts on block 1 and holds length-prefixed blobs, one per key, in
// key order; each blob is either the raw value or its zstd compression,
// whichever is smaller. The index region starts on the first block boundary
// after the values and holds a disk B-tree mapping each key to a BlobRef.
//
// Layer files are named "<key start>-<key end>__<LSN>", for example:
//
//	000000067F000032BE0000400000000070B6-000000067F000032BE0000400000000080B6__00000000346BC568
package layer

import (
	"errors"

	"github.com/em3ndez/neon/pkg/ident"
	"github.com/em3ndez/neon/pkg/keyspace"
	"github.com/em3ndez/neon/pkg/lsn"
)

const (
	// ImageFileMagic identifies a file as an image layer
	ImageFileMagic uint16 = 0x5A60

	// StorageFormatVersion is the on-disk format version written into and
	// required of every layer file.
	StorageFormatVersion uint16 = 3
)

var (
	// ErrSummaryMismatch indicates that a layer file's on-disk summary does
	// not describe the layer the caller expected to open
	ErrSummaryMismatch = errors.New("layer summary does not match expectation")

	// ErrKeyOutOfRange indicates a write of a key outside the layer's
	// declared key range
	ErrKeyOutOfRange = errors.New("key outside layer key range")

	// ErrWriterPoisoned indicates that an earlier failure already aborted
	// this build session
	ErrWriterPoisoned = errors.New("image layer build session already failed")
)

// ValueReconstructResult is the outcome of asking a layer for a key's
// reconstruction data.
type ValueReconstructResult int

const (
	// ReconstructComplete means the value is fully materialized; no older
	// layer needs to be consulted.
	ReconstructComplete ValueReconstructResult = iota

	// ReconstructContinue means the layer contributed deltas but the caller
	// must keep descending to older layers. Image layers never return this;
	// it exists for delta layers, which share the contract.
	ReconstructContinue

	// ReconstructMissing means the layer holds nothing for the key. For an
	// image layer this is definitive within its range: the key did not
	// exist at the layer's LSN.
	ReconstructMissing
)

func (r ValueReconstructResult) String() string {
	switch r {
	case ReconstructComplete:
		return "Complete"
	case ReconstructContinue:
		return "Continue"
	case ReconstructMissing:
		return "Missing"
	default:
		return "Unknown"
	}
}

// ReconstructedImage is a fully materialized value at an LSN.
type ReconstructedImage struct {
	LSN   lsn.LSN
	Value []byte
}

// ValueReconstructState accumulates data across layers while reconstructing
// a value. An image layer fills Img and completes the reconstruction;
// delta layers (external to this package) prepend to Records.
type ValueReconstructState struct {
	Img     *ReconstructedImage
	Records [][]byte
}

// Layer is the surface the layer-selection component above consumes.
type Layer interface {
	// FileName returns the layer's canonical file name.
	FileName() string

	TenantID() ident.TenantID
	TimelineID() ident.TimelineID
	KeyRange() keyspace.Range
	LSNRange() lsn.Range

	// GetValueReconstructData looks up key and fills state with whatever
	// this layer holds for it. The key must lie inside KeyRange() and both
	// LSN bounds must be at or above the layer's LSN; these are caller
	// contracts. The result is meaningless when err is non-nil.
	GetValueReconstructData(key keyspace.Key, lsns lsn.Range, state *ValueReconstructState) (ValueReconstructResult, error)

	// Iter calls visit for every key/LSN/value triple in the layer, in key
	// order, with values fully materialized. A non-nil error from visit
	// stops the scan and is returned.
	Iter(visit func(key keyspace.Key, l lsn.LSN, value []byte) error) error

	// Delete removes the backing file.
	Delete() error

	// IsIncremental reports whether the layer needs a base layer to apply
	// onto. Image layers are self-contained.
	IsIncremental() bool

	// IsInMemory reports whether the layer lives only in memory.
	IsInMemory() bool

	// Dump prints the layer's contents to stdout for debugging.
	Dump(verbose bool) error
}
