package blob

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/em3ndez/neon/pkg/layer/block"
)

// pagedBuffer exposes a byte slice as a page reader, zero-filling past the
// end the way a real file read does.
type pagedBuffer struct {
	data []byte
}

func (p *pagedBuffer) ReadBlk(blkno uint32) ([]byte, error) {
	page := make([]byte, block.PageSize)
	off := int(blkno) * block.PageSize
	if off >= len(p.data) {
		return nil, fmt.Errorf("block %d beyond end of buffer", blkno)
	}
	copy(page, p.data[off:])
	return page, nil
}

func TestBlobRoundTrip(t *testing.T) {
	// The stream starts one page in, like the values region of a layer file.
	var file bytes.Buffer
	file.Write(make([]byte, block.PageSize))
	w := NewWriter(&file, block.PageSize)

	blobs := [][]byte{
		[]byte("short"),
		{},
		bytes.Repeat([]byte{0x42}, 127),               // largest short-prefix blob
		bytes.Repeat([]byte{0x43}, 128),               // smallest long-prefix blob
		bytes.Repeat([]byte("0123456789"), 3000),      // spans multiple pages
		[]byte("after"),
	}

	offsets := make([]uint64, len(blobs))
	for i, b := range blobs {
		off, err := w.WriteBlob(b)
		if err != nil {
			t.Fatalf("Failed to write blob %d: %v", i, err)
		}
		offsets[i] = off
	}

	if offsets[0] != block.PageSize {
		t.Errorf("First blob should start at offset %d, got %d", block.PageSize, offsets[0])
	}

	cursor := NewCursor(&pagedBuffer{data: file.Bytes()})
	for i, want := range blobs {
		got, err := cursor.ReadBlob(offsets[i])
		if err != nil {
			t.Fatalf("Failed to read blob %d at offset %d: %v", i, offsets[i], err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Blob %d mismatch: got %d bytes, want %d bytes", i, len(got), len(want))
		}
	}
}

func TestBlobPrefixCrossesPageBoundary(t *testing.T) {
	var file bytes.Buffer
	w := NewWriter(&file, 0)

	// Fill so the next blob's 4-byte prefix straddles the first page boundary.
	if _, err := w.WriteBlob(bytes.Repeat([]byte{0x1}, 127)); err != nil {
		t.Fatalf("Failed to write pad blob: %v", err)
	}
	for w.Size() < block.PageSize-2 {
		if _, err := w.WriteBlob(nil); err != nil {
			t.Fatalf("Failed to write filler blob: %v", err)
		}
	}

	big := bytes.Repeat([]byte{0x7}, 500)
	off, err := w.WriteBlob(big)
	if err != nil {
		t.Fatalf("Failed to write big blob: %v", err)
	}

	cursor := NewCursor(&pagedBuffer{data: file.Bytes()})
	got, err := cursor.ReadBlob(off)
	if err != nil {
		t.Fatalf("Failed to read straddling blob: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Error("Straddling blob content mismatch")
	}
}

func TestWriterSize(t *testing.T) {
	var file bytes.Buffer
	w := NewWriter(&file, 100)

	if w.Size() != 100 {
		t.Fatalf("Initial size should equal start offset, got %d", w.Size())
	}

	if _, err := w.WriteBlob([]byte("abc")); err != nil {
		t.Fatalf("Failed to write blob: %v", err)
	}
	if w.Size() != 100+1+3 {
		t.Errorf("Size after short blob should be 104, got %d", w.Size())
	}

	if _, err := w.WriteBlob(make([]byte, 200)); err != nil {
		t.Fatalf("Failed to write blob: %v", err)
	}
	if w.Size() != 104+4+200 {
		t.Errorf("Size after long blob should be 308, got %d", w.Size())
	}
}
