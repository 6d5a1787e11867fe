package solver

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/GamesCrafters/nova/db"
	"github.com/GamesCrafters/nova/game"
	"github.com/GamesCrafters/nova/record"
)

// Key space layout inside one Database: records live under 'r' plus
// the state's significant bytes, tier completeness markers under 'm'
// plus the tier id. One byte of prefix keeps the two namespaces
// disjoint without a second handle.
const (
	prefixRecord = 'r'
	prefixMarker = 'm'
)

// Store is the solver's view of a Database: states in, values out.
// It owns the key layout and the record codec, and implements the
// scheduler's tiers.Markers.
type Store struct {
	d       db.Database
	keySize int
}

// NewStore wraps d for a game whose states carry keySize significant
// bytes.
func NewStore(d db.Database, keySize int) *Store {
	return &Store{d: d, keySize: keySize}
}

func (s *Store) recordKey(st game.State) []byte {
	return append([]byte{prefixRecord}, st.Key(s.keySize)...)
}

func markerKey(t game.Tier) []byte {
	k := make([]byte, 9)
	k[0] = prefixMarker
	binary.BigEndian.PutUint64(k[1:], uint64(t))
	return k
}

// Put persists one solved value. Double writes are safe: the encoded
// bytes for a value are deterministic, so a retry upserts identical
// content. An existing record with different bytes means two native
// states collided on one key, which is a fatal contract violation by
// the game's encoder. Transient backend failures are retried in place.
func (s *Store) Put(st game.State, v record.Value) error {
	key := s.recordKey(st)
	buf := record.Encode(v)
	var prev []byte
	if err := db.WithRetry(func() error {
		var err error
		prev, err = s.d.Get(key)
		return err
	}); err != nil && !errors.Is(err, db.ErrWriteOnly) {
		return err
	}
	if prev != nil && !bytes.Equal(prev, buf) {
		return fmt.Errorf("%w: state %s", record.ErrCollision, st)
	}
	return db.WithRetry(func() error {
		return s.d.Put(key, buf)
	})
}

// Get returns the solved value for st, or nil if the state has not
// been solved. A record that fails its integrity check surfaces
// db.ErrCorrupt; it is never passed off as absent.
func (s *Store) Get(st game.State) (*record.Value, error) {
	var buf []byte
	err := db.WithRetry(func() error {
		var err error
		buf, err = s.d.Get(s.recordKey(st))
		return err
	})
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	v, err := record.Decode(buf)
	if err != nil {
		if errors.Is(err, record.ErrChecksum) || errors.Is(err, record.ErrMalformed) {
			return nil, fmt.Errorf("%w: state %s: %v", db.ErrCorrupt, st, err)
		}
		return nil, err
	}
	return &v, nil
}

// MarkSolved durably records tier completeness. It syncs first: a
// marker must never be observable before every record it vouches for.
func (s *Store) MarkSolved(t game.Tier) error {
	if err := s.d.Sync(); err != nil {
		return err
	}
	if err := db.WithRetry(func() error {
		return s.d.Put(markerKey(t), []byte{1})
	}); err != nil {
		return err
	}
	return s.d.Sync()
}

// IsSolved reports whether t's completeness marker exists.
func (s *Store) IsSolved(t game.Tier) (bool, error) {
	var buf []byte
	err := db.WithRetry(func() error {
		var err error
		buf, err = s.d.Get(markerKey(t))
		return err
	})
	if err != nil {
		return false, err
	}
	return buf != nil, nil
}

// Sync flushes the underlying backend.
func (s *Store) Sync() error {
	return s.d.Sync()
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.d.Close()
}
