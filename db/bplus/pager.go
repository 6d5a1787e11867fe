package bplus

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash"

	"github.com/GamesCrafters/nova/db"
)

// pager mediates between node structs and their on-disk pages. Nodes
// are cached once read and written back on flush; the solver's
// write-a-tier-then-read-it access pattern keeps the hot set small.
type pager struct {
	f        *os.File
	cache    map[uint32]*node
	root     uint32
	count    uint32 // pages allocated, including meta page 0
	readonly bool
}

func newPager(f *os.File, readonly bool) *pager {
	return &pager{
		f:        f,
		cache:    make(map[uint32]*node),
		readonly: readonly,
	}
}

// init writes a fresh meta page and an empty root leaf.
func (p *pager) init() error {
	p.count = 1
	root := p.alloc(true)
	p.root = root.id
	return p.flush()
}

func (p *pager) alloc(leaf bool) *node {
	n := &node{id: p.count, leaf: leaf, dirty: true}
	p.count++
	p.cache[n.id] = n
	return n
}

func (p *pager) node(id uint32) (*node, error) {
	if n, ok := p.cache[id]; ok {
		return n, nil
	}
	if id == 0 || id >= p.count {
		return nil, fmt.Errorf("%w: reference to page %d of %d", db.ErrCorrupt, id, p.count)
	}
	buf := make([]byte, pageSize)
	if _, err := p.f.ReadAt(buf, int64(id)*pageSize); err != nil {
		return nil, fmt.Errorf("read page %d: %w", id, err)
	}
	n, err := decodeNode(id, buf)
	if err != nil {
		return nil, err
	}
	p.cache[id] = n
	return n, nil
}

// readMeta validates page zero and loads the tree geometry.
func (p *pager) readMeta() error {
	buf := make([]byte, pageSize)
	if _, err := p.f.ReadAt(buf, 0); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: truncated meta page", db.ErrCorrupt)
		}
		return err
	}
	if string(buf[:8]) != magic {
		return fmt.Errorf("%w: bad magic %q", db.ErrCorrupt, buf[:8])
	}
	want := binary.BigEndian.Uint64(buf[pageSize-pageSumLen:])
	if got := xxhash.Sum64(buf[:pageSize-pageSumLen]); got != want {
		return fmt.Errorf("%w: meta checksum have %016x want %016x",
			db.ErrCorrupt, got, want)
	}
	p.root = binary.BigEndian.Uint32(buf[8:12])
	p.count = binary.BigEndian.Uint32(buf[12:16])
	if p.root == 0 || p.root >= p.count {
		return fmt.Errorf("%w: root page %d of %d", db.ErrCorrupt, p.root, p.count)
	}
	return nil
}

func (p *pager) writeMeta() error {
	buf := make([]byte, pageSize)
	copy(buf, magic)
	binary.BigEndian.PutUint32(buf[8:12], p.root)
	binary.BigEndian.PutUint32(buf[12:16], p.count)
	sum := xxhash.Sum64(buf[:pageSize-pageSumLen])
	binary.BigEndian.PutUint64(buf[pageSize-pageSumLen:], sum)
	_, err := p.f.WriteAt(buf, 0)
	return err
}

// flush writes every dirty node and the meta page.
func (p *pager) flush() error {
	if p.readonly {
		return nil
	}
	buf := make([]byte, pageSize)
	for id, n := range p.cache {
		if !n.dirty {
			continue
		}
		n.encode(buf)
		if _, err := p.f.WriteAt(buf, int64(id)*pageSize); err != nil {
			return fmt.Errorf("write page %d: %w", id, err)
		}
		n.dirty = false
	}
	if err := p.writeMeta(); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return p.f.Sync()
}
