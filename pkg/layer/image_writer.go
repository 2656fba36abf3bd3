package layer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/em3ndez/neon/pkg/common/log"
	"github.com/em3ndez/neon/pkg/config"
	"github.com/em3ndez/neon/pkg/ident"
	"github.com/em3ndez/neon/pkg/keyspace"
	"github.com/em3ndez/neon/pkg/layer/blob"
	"github.com/em3ndez/neon/pkg/layer/block"
	"github.com/em3ndez/neon/pkg/layer/btree"
	"github.com/em3ndez/neon/pkg/lsn"
)

// ImageLayerWriter builds a new image layer file.
//
// Usage:
//
//  1. Create the writer with NewImageLayerWriter.
//  2. Call PutImage for every key/value pair in the key range, in
//     increasing key order.
//  3. Call Finish, which returns the reader handle for the new layer.
//
// The writer owns the layer exclusively until Finish returns; there is no
// internal synchronization. Once a PutImage call has been rejected, the
// whole build session is poisoned and every later call fails: the index
// builder's ordering assumptions may already be broken.
type ImageLayerWriter struct {
	conf *config.Config
	path string

	tenantID   ident.TenantID
	timelineID ident.TimelineID
	keyRange   keyspace.Range
	lsn        lsn.LSN

	file       *os.File
	blobWriter *blob.Writer
	tree       *btree.Builder
	treeBuf    *block.Buf
	compressor *zstd.Encoder

	// err poisons the session after the first failure
	err error
	// finished is set once Finish has handed the layer over; Abort must
	// not remove a completed layer file.
	finished bool
}

// NewImageLayerWriter creates the backing file and prepares the writer.
// Any existing file at the layer's path is overwritten; the caller is
// expected to never build the same layer twice.
func NewImageLayerWriter(conf *config.Config, tenantID ident.TenantID, timelineID ident.TimelineID, keyRange keyspace.Range, l lsn.LSN) (*ImageLayerWriter, error) {
	fileName := ImageFileName{KeyRange: keyRange, LSN: l}
	dir := conf.TimelinePath(tenantID, timelineID)
	path := filepath.Join(dir, fileName.String())

	log.Info("new image layer %s", path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create timeline directory %q: %w", dir, err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create layer file %q: %w", path, err)
	}
	// Leave room for the summary block; values start on block 1.
	if _, err := file.Seek(block.PageSize, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek past header block of %q: %w", path, err)
	}

	compressor, err := newCompressor(conf.GetCompressionLevel())
	if err != nil {
		file.Close()
		return nil, err
	}

	treeBuf := block.NewBuf()
	return &ImageLayerWriter{
		conf:       conf,
		path:       path,
		tenantID:   tenantID,
		timelineID: timelineID,
		keyRange:   keyRange,
		lsn:        l,
		file:       file,
		blobWriter: blob.NewWriter(file, block.PageSize),
		tree:       btree.NewBuilder(treeBuf, keyspace.KeySize),
		treeBuf:    treeBuf,
		compressor: compressor,
	}, nil
}

// PutImage appends the value for one key. Keys must arrive in strictly
// increasing order and must fall inside the layer's key range.
func (w *ImageLayerWriter) PutImage(key keyspace.Key, img []byte) error {
	if w.err != nil {
		return fmt.Errorf("%w: %v", ErrWriterPoisoned, w.err)
	}
	if !w.keyRange.Contains(key) {
		w.err = fmt.Errorf("%w: key %s not in %s", ErrKeyOutOfRange, key, w.keyRange)
		return w.err
	}

	content := img
	compressed := false
	if w.compressor != nil {
		// Keep the compressed form only if it is strictly smaller. The
		// read path relies on this: the blob ref's flag is its only way
		// to know whether the stored bytes need inflating, and the
		// decompressor gets no output-size hint.
		compressedBytes := w.compressor.EncodeAll(img, nil)
		if len(compressedBytes) < len(img) {
			content = compressedBytes
			compressed = true
		}
	}

	offset, err := w.blobWriter.WriteBlob(content)
	if err != nil {
		w.err = fmt.Errorf("failed to write value for key %s to %q: %w", key, w.path, err)
		return w.err
	}

	if err := w.tree.Append(key[:], uint64(NewBlobRef(offset, compressed))); err != nil {
		w.err = fmt.Errorf("failed to index key %s: %w", key, err)
		return w.err
	}
	return nil
}

// Finish flushes the index and the summary and closes the file. It returns
// an unloaded reader handle for the new layer: the writer's file handle is
// write-only and deliberately never reused for reads.
func (w *ImageLayerWriter) Finish() (*ImageLayer, error) {
	if w.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriterPoisoned, w.err)
	}

	// The index starts on the first block boundary after the values.
	indexStartBlk := uint32((w.blobWriter.Size() + block.PageSize - 1) / block.PageSize)

	indexRootBlk, err := w.tree.Finish()
	if err != nil {
		w.abortWith(err)
		return nil, fmt.Errorf("failed to finish index of %q: %w", w.path, err)
	}
	if _, err := w.file.Seek(int64(indexStartBlk)*block.PageSize, io.SeekStart); err != nil {
		w.abortWith(err)
		return nil, fmt.Errorf("failed to seek to index region of %q: %w", w.path, err)
	}
	if _, err := w.treeBuf.WriteTo(w.file); err != nil {
		w.abortWith(err)
		return nil, fmt.Errorf("failed to write index of %q: %w", w.path, err)
	}

	summary := Summary{
		Magic:         ImageFileMagic,
		FormatVersion: StorageFormatVersion,
		TenantID:      w.tenantID,
		TimelineID:    w.timelineID,
		KeyRange:      w.keyRange,
		LSN:           w.lsn,
		IndexStartBlk: indexStartBlk,
		IndexRootBlk:  indexRootBlk,
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.abortWith(err)
		return nil, fmt.Errorf("failed to seek to header block of %q: %w", w.path, err)
	}
	if _, err := w.file.Write(summary.Encode()); err != nil {
		w.abortWith(err)
		return nil, fmt.Errorf("failed to write summary of %q: %w", w.path, err)
	}

	if err := w.file.Sync(); err != nil {
		w.abortWith(err)
		return nil, fmt.Errorf("failed to sync %q: %w", w.path, err)
	}
	if err := w.close(); err != nil {
		return nil, fmt.Errorf("failed to close %q: %w", w.path, err)
	}
	w.finished = true

	layer := &ImageLayer{
		origin:     fromConfig,
		conf:       w.conf,
		tenantID:   w.tenantID,
		timelineID: w.timelineID,
		keyRange:   w.keyRange,
		lsn:        w.lsn,
		inner: imageLayerInner{
			loaded:        false,
			indexStartBlk: indexStartBlk,
			indexRootBlk:  indexRootBlk,
		},
	}
	log.Debug("created image layer %s", layer.Path())
	return layer, nil
}

// Abort discards the partially written layer and removes its file. After a
// successful Finish the layer belongs to the returned handle and Abort does
// nothing.
func (w *ImageLayerWriter) Abort() error {
	if w.finished {
		return nil
	}
	if err := w.close(); err != nil {
		return err
	}
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove aborted layer %q: %w", w.path, err)
	}
	return nil
}

func (w *ImageLayerWriter) abortWith(err error) {
	w.err = err
	w.close()
}

func (w *ImageLayerWriter) close() error {
	if w.compressor != nil {
		w.compressor.Close()
		w.compressor = nil
	}
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
