// Package volatile provides the in-memory Database backend. It has no
// durability and exists for testing and for games whose full record
// set fits in memory (mode "none": no disk I/O at all).
package volatile

import (
	"sync"

	"github.com/GamesCrafters/nova/db"
)

type store struct {
	mu     sync.RWMutex
	m      map[string][]byte
	closed bool
}

// Open returns a fresh in-memory database. Options are accepted for
// contract uniformity; only a read-only mode is rejected, since a
// brand-new empty volatile store can never satisfy reads.
func Open(opts db.Options) (db.Database, error) {
	if opts.Mode == db.ModeRead {
		return nil, db.ErrNotFound
	}
	return &store{m: make(map[string][]byte)}, nil
}

func (s *store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrClosed
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.m[string(key)] = v
	return nil
}

func (s *store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, db.ErrClosed
	}
	v, ok := s.m[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *store) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrClosed
	}
	delete(s.m, string(key))
	return nil
}

func (s *store) Sync() error { return nil }

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.m = nil
	return nil
}
