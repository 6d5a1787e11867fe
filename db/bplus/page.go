// Package bplus implements the on-disk B+ tree Database backend. The
// file is an array of fixed-size pages: page zero holds the tree
// metadata, every other page one node. Each page carries an xxhash
// integrity word; a page failing its check surfaces db.ErrCorrupt and
// is never interpreted.
//
// Deletion removes entries from leaves without rebalancing. The
// solving path never deletes; Delete exists for maintenance, where a
// slightly underfull leaf is acceptable.
package bplus

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash"

	"github.com/GamesCrafters/nova/db"
)

const (
	pageSize = 4096
	magic    = "NOVABPT1"

	kindLeaf     = 1
	kindInternal = 2

	pageHeaderLen = 8 // kind(1) + pad(1) + entries(2) + next(4)
	pageSumLen    = 8

	// payloadCap is the byte capacity for one node's entries.
	payloadCap = pageSize - pageHeaderLen - pageSumLen
)

// node is the in-memory form of one tree page. Leaves hold key/value
// pairs and chain to the next leaf in key order; internal nodes hold
// separator keys and child page ids, with len(children) == len(keys)+1.
type node struct {
	id       uint32
	leaf     bool
	keys     [][]byte
	vals     [][]byte
	children []uint32
	next     uint32
	dirty    bool
}

// payload returns the serialized entry size of n, used to decide
// splits before a page overflows.
func (n *node) payload() int {
	size := 0
	if n.leaf {
		for i, k := range n.keys {
			size += 2 + len(k) + 2 + len(n.vals[i])
		}
	} else {
		for _, k := range n.keys {
			size += 2 + len(k) + 4
		}
		size += 4 // trailing child
	}
	return size
}

// search returns the index of key in n and whether it is present.
func (n *node) search(key []byte) (int, bool) {
	i := sort.Search(len(n.keys), func(i int) bool {
		return string(n.keys[i]) >= string(key)
	})
	found := i < len(n.keys) && string(n.keys[i]) == string(key)
	return i, found
}

// childIndex returns the child slot to descend into for key.
func (n *node) childIndex(key []byte) int {
	i := sort.Search(len(n.keys), func(i int) bool {
		return string(n.keys[i]) > string(key)
	})
	return i
}

func (n *node) encode(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	if n.leaf {
		buf[0] = kindLeaf
	} else {
		buf[0] = kindInternal
	}
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(n.keys)))
	binary.BigEndian.PutUint32(buf[4:8], n.next)
	off := pageHeaderLen
	if n.leaf {
		for i, k := range n.keys {
			binary.BigEndian.PutUint16(buf[off:], uint16(len(k)))
			off += 2
			off += copy(buf[off:], k)
			binary.BigEndian.PutUint16(buf[off:], uint16(len(n.vals[i])))
			off += 2
			off += copy(buf[off:], n.vals[i])
		}
	} else {
		for i, k := range n.keys {
			binary.BigEndian.PutUint16(buf[off:], uint16(len(k)))
			off += 2
			off += copy(buf[off:], k)
			binary.BigEndian.PutUint32(buf[off:], n.children[i])
			off += 4
		}
		binary.BigEndian.PutUint32(buf[off:], n.children[len(n.keys)])
	}
	sum := xxhash.Sum64(buf[:pageSize-pageSumLen])
	binary.BigEndian.PutUint64(buf[pageSize-pageSumLen:], sum)
}

func decodeNode(id uint32, buf []byte) (*node, error) {
	want := binary.BigEndian.Uint64(buf[pageSize-pageSumLen:])
	if got := xxhash.Sum64(buf[:pageSize-pageSumLen]); got != want {
		return nil, fmt.Errorf("%w: page %d checksum have %016x want %016x",
			db.ErrCorrupt, id, got, want)
	}
	n := &node{id: id}
	switch buf[0] {
	case kindLeaf:
		n.leaf = true
	case kindInternal:
	default:
		return nil, fmt.Errorf("%w: page %d has kind %d", db.ErrCorrupt, id, buf[0])
	}
	count := int(binary.BigEndian.Uint16(buf[2:4]))
	n.next = binary.BigEndian.Uint32(buf[4:8])
	off := pageHeaderLen
	read := func(ln int) ([]byte, error) {
		if off+ln > pageSize-pageSumLen {
			return nil, fmt.Errorf("%w: page %d entry overruns page", db.ErrCorrupt, id)
		}
		b := make([]byte, ln)
		copy(b, buf[off:off+ln])
		off += ln
		return b, nil
	}
	for i := 0; i < count; i++ {
		kl := int(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
		k, err := read(kl)
		if err != nil {
			return nil, err
		}
		n.keys = append(n.keys, k)
		if n.leaf {
			vl := int(binary.BigEndian.Uint16(buf[off : off+2]))
			off += 2
			v, err := read(vl)
			if err != nil {
				return nil, err
			}
			n.vals = append(n.vals, v)
		} else {
			n.children = append(n.children, binary.BigEndian.Uint32(buf[off:off+4]))
			off += 4
		}
	}
	if !n.leaf {
		n.children = append(n.children, binary.BigEndian.Uint32(buf[off:off+4]))
	}
	return n, nil
}
