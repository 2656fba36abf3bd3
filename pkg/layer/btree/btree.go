// Package btree implements the disk-resident ordered index embedded in
// layer files. It maps fixed-width keys to 64-bit values and is built once,
// bottom-up, from keys appended in strictly increasing order; after that it
// is read-only.
//
// Every node occupies one page. A node starts with a one-byte level (zero
// for leaves) and a two-byte entry count, followed by fixed-stride entries
// of key bytes plus a little-endian uint64. In leaf nodes the uint64 is the
// stored value; in interior nodes it is the block number of the child whose
// subtree starts at the entry's key. Block numbers are relative to the
// start of the index region within the file.
package btree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/em3ndez/neon/pkg/layer/block"
)

const nodeHeaderSize = 3

var (
	// ErrOutOfOrder indicates an append that is not strictly above the
	// previous key
	ErrOutOfOrder = errors.New("keys must be appended in strictly increasing order")
	// ErrBadKeyLen indicates a key of the wrong width
	ErrBadKeyLen = errors.New("wrong key length")
	// ErrCorruption indicates a malformed index node
	ErrCorruption = errors.New("index corruption detected")
)

func nodeCapacity(keyLen int) int {
	return (block.PageSize - nodeHeaderSize) / (keyLen + 8)
}

// nodeBuilder accumulates entries for one node under construction.
type nodeBuilder struct {
	level    int
	keyLen   int
	count    int
	firstKey []byte
	data     []byte
}

func newNodeBuilder(level, keyLen int) *nodeBuilder {
	return &nodeBuilder{
		level:  level,
		keyLen: keyLen,
		data:   make([]byte, 0, nodeCapacity(keyLen)*(keyLen+8)),
	}
}

func (n *nodeBuilder) add(key []byte, value uint64) {
	if n.count == 0 {
		n.firstKey = append([]byte(nil), key...)
	}
	n.data = append(n.data, key...)
	n.data = binary.LittleEndian.AppendUint64(n.data, value)
	n.count++
}

func (n *nodeBuilder) full() bool {
	return n.count >= nodeCapacity(n.keyLen)
}

func (n *nodeBuilder) reset() {
	n.count = 0
	n.firstKey = nil
	n.data = n.data[:0]
}

// Builder constructs the index. Keys are appended in strictly increasing
// order; finished nodes are packed into a block.Buf as they fill up, so at
// any moment only the rightmost spine of the tree is held in builder state.
type Builder struct {
	buf     *block.Buf
	keyLen  int
	levels  []*nodeBuilder
	lastKey []byte
	count   int
}

// NewBuilder returns a builder that packs nodes into buf.
func NewBuilder(buf *block.Buf, keyLen int) *Builder {
	return &Builder{buf: buf, keyLen: keyLen}
}

// Append adds one key/value pair. The key must be strictly greater than
// every key appended before it.
func (b *Builder) Append(key []byte, value uint64) error {
	if len(key) != b.keyLen {
		return fmt.Errorf("%w: got %d, want %d", ErrBadKeyLen, len(key), b.keyLen)
	}
	if b.lastKey != nil && bytes.Compare(key, b.lastKey) <= 0 {
		return fmt.Errorf("%w: %x after %x", ErrOutOfOrder, key, b.lastKey)
	}
	b.lastKey = append(b.lastKey[:0], key...)
	b.count++
	b.appendAt(0, key, value)
	return nil
}

// Count returns the number of appended entries.
func (b *Builder) Count() int {
	return b.count
}

func (b *Builder) appendAt(level int, key []byte, value uint64) {
	for len(b.levels) <= level {
		b.levels = append(b.levels, newNodeBuilder(len(b.levels), b.keyLen))
	}
	node := b.levels[level]
	if node.full() {
		blkno, firstKey := b.flush(node)
		b.appendAt(level+1, firstKey, uint64(blkno))
	}
	node.add(key, value)
}

// flush packs the node into a page and resets it, returning the page's
// block number and the node's first key.
func (b *Builder) flush(node *nodeBuilder) (uint32, []byte) {
	blkno, page := b.buf.AllocPage()
	page[0] = byte(node.level)
	binary.LittleEndian.PutUint16(page[1:nodeHeaderSize], uint16(node.count))
	copy(page[nodeHeaderSize:], node.data)
	firstKey := node.firstKey
	node.reset()
	return blkno, firstKey
}

// Finish flushes all partial nodes and returns the block number of the
// root node, relative to the start of the index region.
func (b *Builder) Finish() (uint32, error) {
	if b.count == 0 {
		// An empty index still gets an empty leaf root so readers have
		// a node to land on.
		root, _ := b.flush(newNodeBuilder(0, b.keyLen))
		return root, nil
	}

	for level := 0; ; level++ {
		node := b.levels[level]
		if level+1 < len(b.levels) {
			blkno, firstKey := b.flush(node)
			b.appendAt(level+1, firstKey, uint64(blkno))
			continue
		}
		// Topmost level. An interior node with a single child is a
		// pointless indirection: its child is the root.
		if node.level > 0 && node.count == 1 {
			return uint32(binary.LittleEndian.Uint64(node.data[b.keyLen:])), nil
		}
		root, _ := b.flush(node)
		return root, nil
	}
}

// Reader performs lookups and ordered traversal over a finished index.
type Reader struct {
	r        block.Reader
	startBlk uint32
	rootBlk  uint32
	keyLen   int
}

// NewReader returns a reader over the index whose region starts at
// startBlk in the file and whose root is at rootBlk within that region.
func NewReader(r block.Reader, startBlk, rootBlk uint32, keyLen int) *Reader {
	return &Reader{r: r, startBlk: startBlk, rootBlk: rootBlk, keyLen: keyLen}
}

type node struct {
	level  int
	count  int
	keyLen int
	data   []byte
}

func (r *Reader) readNode(blkno uint32) (*node, error) {
	page, err := r.r.ReadBlk(r.startBlk + blkno)
	if err != nil {
		return nil, fmt.Errorf("failed to read index block %d: %w", blkno, err)
	}
	n := &node{
		level:  int(page[0]),
		count:  int(binary.LittleEndian.Uint16(page[1:nodeHeaderSize])),
		keyLen: r.keyLen,
		data:   page[nodeHeaderSize:],
	}
	if n.count > nodeCapacity(r.keyLen) {
		return nil, fmt.Errorf("%w: block %d claims %d entries", ErrCorruption, blkno, n.count)
	}
	return n, nil
}

func (n *node) key(i int) []byte {
	off := i * (n.keyLen + 8)
	return n.data[off : off+n.keyLen]
}

func (n *node) value(i int) uint64 {
	off := i*(n.keyLen+8) + n.keyLen
	return binary.LittleEndian.Uint64(n.data[off : off+8])
}

// Get returns the value stored for key, or found=false if the key is not
// in the index.
func (r *Reader) Get(key []byte) (value uint64, found bool, err error) {
	if len(key) != r.keyLen {
		return 0, false, fmt.Errorf("%w: got %d, want %d", ErrBadKeyLen, len(key), r.keyLen)
	}

	blkno := r.rootBlk
	for {
		n, err := r.readNode(blkno)
		if err != nil {
			return 0, false, err
		}
		if n.count == 0 {
			return 0, false, nil
		}

		if n.level == 0 {
			i := sort.Search(n.count, func(i int) bool {
				return bytes.Compare(n.key(i), key) >= 0
			})
			if i < n.count && bytes.Equal(n.key(i), key) {
				return n.value(i), true, nil
			}
			return 0, false, nil
		}

		// Descend into the last child whose first key is <= key.
		i := sort.Search(n.count, func(i int) bool {
			return bytes.Compare(n.key(i), key) > 0
		})
		if i == 0 {
			// Key is below the smallest key in the tree.
			return 0, false, nil
		}
		blkno = uint32(n.value(i - 1))
	}
}

// Visit walks the index in key order starting from the first key >=
// startKey, calling fn for each entry. Traversal stops early when fn
// returns false.
func (r *Reader) Visit(startKey []byte, fn func(key []byte, value uint64) bool) error {
	if len(startKey) != r.keyLen {
		return fmt.Errorf("%w: got %d, want %d", ErrBadKeyLen, len(startKey), r.keyLen)
	}
	_, err := r.visit(r.rootBlk, startKey, fn)
	return err
}

func (r *Reader) visit(blkno uint32, startKey []byte, fn func(key []byte, value uint64) bool) (bool, error) {
	n, err := r.readNode(blkno)
	if err != nil {
		return false, err
	}

	if n.level == 0 {
		i := sort.Search(n.count, func(i int) bool {
			return bytes.Compare(n.key(i), startKey) >= 0
		})
		for ; i < n.count; i++ {
			if !fn(n.key(i), n.value(i)) {
				return false, nil
			}
		}
		return true, nil
	}

	// The first subtree that can hold startKey is the last child whose
	// first key is <= startKey; everything after it is visited in full.
	i := sort.Search(n.count, func(i int) bool {
		return bytes.Compare(n.key(i), startKey) > 0
	})
	if i > 0 {
		i--
	}
	for ; i < n.count; i++ {
		cont, err := r.visit(uint32(n.value(i)), startKey, fn)
		if err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}
