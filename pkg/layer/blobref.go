package layer

// BlobRef is the packed value stored in the index for each key: the byte
// offset of the key's blob in the values region, shifted left one bit, with
// the low bit flagging compression.
//
// The flag is load-bearing, not advisory: it is set only when compression
// made the blob strictly smaller, and the read path decompresses exactly
// when it is set. The decompressor gets no separate output-size hint, so a
// flag that lies about the encoding would corrupt the read.
type BlobRef uint64

const blobCompressed uint64 = 1

// NewBlobRef packs a byte offset and a compression flag.
func NewBlobRef(pos uint64, compressed bool) BlobRef {
	ref := pos << 1
	if compressed {
		ref |= blobCompressed
	}
	return BlobRef(ref)
}

// Pos returns the byte offset of the blob in the values region.
func (r BlobRef) Pos() uint64 {
	return uint64(r) >> 1
}

// Compressed reports whether the blob is zstd-compressed.
func (r BlobRef) Compressed() bool {
	return uint64(r)&blobCompressed != 0
}
