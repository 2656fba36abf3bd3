// Package blob implements the length-prefixed blob stream stored in the
// values region of a layer file. Blobs shorter than 128 bytes carry a
// one-byte length prefix; longer blobs carry a four-byte big-endian length
// with the top bit set. Blobs are packed back to back and may cross page
// boundaries.
package blob

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/em3ndez/neon/pkg/layer/block"
)

// Blobs below this length use the short one-byte prefix.
const shortLenThreshold = 0x80

// MaxBlobLen is the largest blob the four-byte prefix can describe.
const MaxBlobLen = 0x7FFFFFFF

// ErrBlobTooLarge is returned when writing a blob above MaxBlobLen
var ErrBlobTooLarge = errors.New("blob too large")

// Writer appends length-prefixed blobs to a byte stream and hands back the
// absolute byte offset each blob starts at. The stream begins at a caller
// supplied offset so the offsets account for the header block preceding the
// values region.
type Writer struct {
	w      io.Writer
	offset uint64
}

// NewWriter wraps w, which must be positioned at startOffset bytes into
// the file.
func NewWriter(w io.Writer, startOffset uint64) *Writer {
	return &Writer{w: w, offset: startOffset}
}

// WriteBlob appends one blob and returns the byte offset it starts at.
func (b *Writer) WriteBlob(data []byte) (uint64, error) {
	offset := b.offset

	var prefix [4]byte
	var prefixLen int
	if len(data) < shortLenThreshold {
		prefix[0] = byte(len(data))
		prefixLen = 1
	} else {
		if len(data) > MaxBlobLen {
			return 0, fmt.Errorf("%w: %d bytes", ErrBlobTooLarge, len(data))
		}
		binary.BigEndian.PutUint32(prefix[:], uint32(len(data))|0x80000000)
		prefixLen = 4
	}

	if _, err := b.w.Write(prefix[:prefixLen]); err != nil {
		return 0, fmt.Errorf("failed to write blob length at offset %d: %w", offset, err)
	}
	if _, err := b.w.Write(data); err != nil {
		return 0, fmt.Errorf("failed to write blob at offset %d: %w", offset, err)
	}

	b.offset += uint64(prefixLen) + uint64(len(data))
	return offset, nil
}

// Size returns the total byte length of the stream written so far,
// including the start offset.
func (b *Writer) Size() uint64 {
	return b.offset
}

// Cursor reads blobs back through a page reader. It caches the page it read
// last, so reading consecutive blobs does not re-fetch the same page.
type Cursor struct {
	r       block.Reader
	blkno   uint32
	page    []byte
	hasPage bool
}

// NewCursor returns a cursor over r.
func NewCursor(r block.Reader) *Cursor {
	return &Cursor{r: r}
}

// ReadBlob reads the blob starting at the given byte offset.
func (c *Cursor) ReadBlob(offset uint64) ([]byte, error) {
	var prefix [1]byte
	if err := c.readAt(prefix[:], offset); err != nil {
		return nil, err
	}

	var dataLen uint32
	dataOff := offset + 1
	if prefix[0] < shortLenThreshold {
		dataLen = uint32(prefix[0])
	} else {
		var lenBuf [4]byte
		if err := c.readAt(lenBuf[:], offset); err != nil {
			return nil, err
		}
		dataLen = binary.BigEndian.Uint32(lenBuf[:]) &^ 0x80000000
		dataOff = offset + 4
	}

	data := make([]byte, dataLen)
	if err := c.readAt(data, dataOff); err != nil {
		return nil, err
	}
	return data, nil
}

// readAt fills buf from the byte offset, crossing page boundaries as needed.
func (c *Cursor) readAt(buf []byte, offset uint64) error {
	for len(buf) > 0 {
		blkno := uint32(offset / block.PageSize)
		off := int(offset % block.PageSize)

		if !c.hasPage || c.blkno != blkno {
			page, err := c.r.ReadBlk(blkno)
			if err != nil {
				return fmt.Errorf("failed to read blob page: %w", err)
			}
			c.blkno = blkno
			c.page = page
			c.hasPage = true
		}

		n := copy(buf, c.page[off:])
		buf = buf[n:]
		offset += uint64(n)
	}
	return nil
}
