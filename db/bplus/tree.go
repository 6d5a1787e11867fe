package bplus

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/GamesCrafters/nova/db"
)

type tree struct {
	mu     sync.Mutex
	pager  *pager
	mode   db.Mode
	closed bool
}

// Open opens or creates a B+ tree file at opts.Path. Opening read-only
// on a missing path fails with db.ErrNotFound; opening writable
// preserves existing contents unless opts.Truncate is set.
func Open(opts db.Options) (db.Database, error) {
	if opts.Mode == db.ModeNone {
		return nil, fmt.Errorf("bplus: mode none performs no I/O; use the volatile backend")
	}
	readonly := opts.Mode == db.ModeRead

	var flags int
	if readonly {
		flags = os.O_RDONLY
	} else {
		flags = os.O_RDWR | os.O_CREATE
		if opts.Truncate {
			flags |= os.O_TRUNC
		}
	}
	f, err := os.OpenFile(opts.Path, flags, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", db.ErrNotFound, opts.Path)
		}
		return nil, fmt.Errorf("bplus: open %s: %w", opts.Path, err)
	}

	t := &tree{pager: newPager(f, readonly), mode: opts.Mode}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() == 0 {
		if readonly {
			f.Close()
			return nil, fmt.Errorf("%w: %s is empty", db.ErrNotFound, opts.Path)
		}
		if err := t.pager.init(); err != nil {
			f.Close()
			return nil, err
		}
	} else if err := t.pager.readMeta(); err != nil {
		f.Close()
		return nil, err
	}
	log.Debug().Str("path", opts.Path).Stringer("mode", opts.Mode).
		Uint32("pages", t.pager.count).Msg("bplus open")
	return t, nil
}

func (t *tree) Get(key []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, db.ErrClosed
	}
	if !t.mode.Readable() {
		return nil, db.ErrWriteOnly
	}
	n, err := t.pager.node(t.pager.root)
	if err != nil {
		return nil, err
	}
	for !n.leaf {
		n, err = t.pager.node(n.children[n.childIndex(key)])
		if err != nil {
			return nil, err
		}
	}
	if i, found := n.search(key); found {
		out := make([]byte, len(n.vals[i]))
		copy(out, n.vals[i])
		return out, nil
	}
	return nil, nil
}

func (t *tree) Put(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return db.ErrClosed
	}
	if t.mode == db.ModeRead {
		return db.ErrReadOnly
	}
	root, err := t.pager.node(t.pager.root)
	if err != nil {
		return err
	}
	promoted, right, err := t.insert(root, key, value)
	if err != nil {
		return err
	}
	if right != nil {
		// Root split: grow the tree by one level.
		newRoot := t.pager.alloc(false)
		newRoot.keys = [][]byte{promoted}
		newRoot.children = []uint32{root.id, right.id}
		t.pager.root = newRoot.id
	}
	return nil
}

func (t *tree) insert(n *node, key, value []byte) ([]byte, *node, error) {
	n.dirty = true
	if n.leaf {
		v := make([]byte, len(value))
		copy(v, value)
		if i, found := n.search(key); found {
			n.vals[i] = v
		} else {
			k := make([]byte, len(key))
			copy(k, key)
			n.keys = append(n.keys, nil)
			copy(n.keys[i+1:], n.keys[i:])
			n.keys[i] = k
			n.vals = append(n.vals, nil)
			copy(n.vals[i+1:], n.vals[i:])
			n.vals[i] = v
		}
		if n.payload() <= payloadCap {
			return nil, nil, nil
		}
		promoted, sib := t.splitLeaf(n)
		return promoted, sib, nil
	}

	ci := n.childIndex(key)
	child, err := t.pager.node(n.children[ci])
	if err != nil {
		return nil, nil, err
	}
	promoted, right, err := t.insert(child, key, value)
	if err != nil {
		return nil, nil, err
	}
	if right == nil {
		return nil, nil, nil
	}
	n.keys = append(n.keys, nil)
	copy(n.keys[ci+1:], n.keys[ci:])
	n.keys[ci] = promoted
	n.children = append(n.children, 0)
	copy(n.children[ci+2:], n.children[ci+1:])
	n.children[ci+1] = right.id
	if n.payload() <= payloadCap {
		return nil, nil, nil
	}
	p, sib := t.splitInternal(n)
	return p, sib, nil
}

func (t *tree) splitLeaf(n *node) ([]byte, *node) {
	mid := len(n.keys) / 2
	sib := t.pager.alloc(true)
	sib.keys = append(sib.keys, n.keys[mid:]...)
	sib.vals = append(sib.vals, n.vals[mid:]...)
	sib.next = n.next
	n.keys = n.keys[:mid:mid]
	n.vals = n.vals[:mid:mid]
	n.next = sib.id
	return sib.keys[0], sib
}

func (t *tree) splitInternal(n *node) ([]byte, *node) {
	mid := len(n.keys) / 2
	promoted := n.keys[mid]
	sib := t.pager.alloc(false)
	sib.keys = append(sib.keys, n.keys[mid+1:]...)
	sib.children = append(sib.children, n.children[mid+1:]...)
	n.keys = n.keys[:mid:mid]
	n.children = n.children[: mid+1 : mid+1]
	return promoted, sib
}

func (t *tree) Delete(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return db.ErrClosed
	}
	if t.mode == db.ModeRead {
		return db.ErrReadOnly
	}
	n, err := t.pager.node(t.pager.root)
	if err != nil {
		return err
	}
	for !n.leaf {
		n, err = t.pager.node(n.children[n.childIndex(key)])
		if err != nil {
			return err
		}
	}
	if i, found := n.search(key); found {
		n.keys = append(n.keys[:i], n.keys[i+1:]...)
		n.vals = append(n.vals[:i], n.vals[i+1:]...)
		n.dirty = true
	}
	return nil
}

func (t *tree) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return db.ErrClosed
	}
	return t.pager.flush()
}

func (t *tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	err := t.pager.flush()
	if cerr := t.pager.f.Close(); err == nil {
		err = cerr
	}
	t.closed = true
	return err
}
