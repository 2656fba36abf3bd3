// Package block provides fixed-size page I/O over layer files: a positional
// page reader for finished files and an append-only in-memory page buffer
// used while an index is being built.
package block

import (
	"fmt"
	"io"
	"os"
)

// PageSize is the fixed unit of file I/O for layer files.
const PageSize = 8192

// Reader reads fixed-size pages by block number.
type Reader interface {
	// ReadBlk returns the PageSize bytes of block blkno.
	ReadBlk(blkno uint32) ([]byte, error)
}

// FileReader is a Reader over an open layer file.
type FileReader struct {
	path string
	file *os.File
}

// OpenFile opens the file at path for page reads.
func OpenFile(path string) (*FileReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	return &FileReader{path: path, file: file}, nil
}

// ReadBlk reads one page. A read that extends past the end of the file is
// zero-filled; a sparse region in the file reads back as zeroes the same way.
func (r *FileReader) ReadBlk(blkno uint32) ([]byte, error) {
	buf := make([]byte, PageSize)
	n, err := r.file.ReadAt(buf, int64(blkno)*PageSize)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read block %d of %q: %w", blkno, r.path, err)
	}
	if n == 0 && err == io.EOF {
		return nil, fmt.Errorf("failed to read block %d of %q: beyond end of file", blkno, r.path)
	}
	return buf, nil
}

// Path returns the path the reader was opened with.
func (r *FileReader) Path() string {
	return r.path
}

// Close closes the underlying file.
func (r *FileReader) Close() error {
	return r.file.Close()
}

// Buf is an append-only collection of in-memory pages. The index builder
// assembles its pages here; they are flushed to the file in one sweep when
// the layer is finalized. Buf also implements Reader so a freshly built
// index can be read back without touching a file.
type Buf struct {
	// Pages holds the allocated pages in block-number order.
	Pages [][]byte
}

// NewBuf returns an empty page buffer.
func NewBuf() *Buf {
	return &Buf{}
}

// AllocPage allocates a zeroed page and returns its block number.
func (b *Buf) AllocPage() (uint32, []byte) {
	blkno := uint32(len(b.Pages))
	page := make([]byte, PageSize)
	b.Pages = append(b.Pages, page)
	return blkno, page
}

// ReadBlk returns the page with the given block number.
func (b *Buf) ReadBlk(blkno uint32) ([]byte, error) {
	if int(blkno) >= len(b.Pages) {
		return nil, fmt.Errorf("block %d out of bounds (have %d pages)", blkno, len(b.Pages))
	}
	return b.Pages[blkno], nil
}

// WriteTo writes all pages to w in block-number order.
func (b *Buf) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for blkno, page := range b.Pages {
		n, err := w.Write(page)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write block %d: %w", blkno, err)
		}
	}
	return written, nil
}
