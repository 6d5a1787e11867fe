// Package lsm provides the log-structured merge Database backend on
// top of BadgerDB. Badger keeps an append-only value log with
// background compaction, which fits the solver's write rate: every
// tier flushes a burst of fresh records that are only read by later
// tiers.
package lsm

import (
	"errors"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	badgery "github.com/dgraph-io/badger/v4/y"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GamesCrafters/nova/db"
)

type store struct {
	bdb  *badger.DB
	mode db.Mode
}

// badgerLogger adapts zerolog to badger's Logger interface. Badger is
// chatty at info level during compaction, so its info and debug both
// map to debug.
type badgerLogger struct{ l zerolog.Logger }

func (b badgerLogger) Errorf(f string, a ...interface{})   { b.l.Error().Msgf(f, a...) }
func (b badgerLogger) Warningf(f string, a ...interface{}) { b.l.Warn().Msgf(f, a...) }
func (b badgerLogger) Infof(f string, a ...interface{})    { b.l.Debug().Msgf(f, a...) }
func (b badgerLogger) Debugf(f string, a ...interface{})   { b.l.Debug().Msgf(f, a...) }

// Open opens a badger directory at opts.Path. Read-only mode on a
// missing directory fails with db.ErrNotFound. Truncate removes any
// existing contents before opening writable.
func Open(opts db.Options) (db.Database, error) {
	if opts.Mode == db.ModeNone {
		return nil, fmt.Errorf("lsm: mode none performs no I/O; use the volatile backend")
	}
	readonly := opts.Mode == db.ModeRead
	if readonly {
		if _, err := os.Stat(opts.Path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", db.ErrNotFound, opts.Path)
		}
	} else if opts.Truncate {
		if err := os.RemoveAll(opts.Path); err != nil {
			return nil, fmt.Errorf("lsm: truncate %s: %w", opts.Path, err)
		}
	}

	bopts := badger.DefaultOptions(opts.Path).
		WithReadOnly(readonly).
		WithLogger(badgerLogger{log.With().Str("backend", "lsm").Logger()})
	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, mapErr(err)
	}
	log.Debug().Str("path", opts.Path).Stringer("mode", opts.Mode).Msg("lsm open")
	return &store{bdb: bdb, mode: opts.Mode}, nil
}

// mapErr sorts badger failures into the contract's taxonomy. Checksum
// and manifest damage is corruption; lock contention and conflicts are
// transient; the rest passes through.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict), errors.Is(err, badger.ErrBlockedWrites):
		return fmt.Errorf("%w: %v", db.ErrTransient, err)
	case errors.Is(err, badgery.ErrChecksumMismatch):
		return fmt.Errorf("%w: %v", db.ErrCorrupt, err)
	case errors.Is(err, badger.ErrDBClosed):
		return db.ErrClosed
	default:
		return err
	}
}

func (s *store) Put(key, value []byte) error {
	if !s.mode.Writable() {
		return db.ErrReadOnly
	}
	err := s.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	return mapErr(err)
}

func (s *store) Get(key []byte) ([]byte, error) {
	if !s.mode.Readable() {
		return nil, db.ErrWriteOnly
	}
	var out []byte
	err := s.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	return out, mapErr(err)
}

func (s *store) Delete(key []byte) error {
	if !s.mode.Writable() {
		return db.ErrReadOnly
	}
	err := s.bdb.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	return mapErr(err)
}

func (s *store) Sync() error {
	if s.mode == db.ModeRead {
		return nil
	}
	return mapErr(s.bdb.Sync())
}

func (s *store) Close() error {
	return mapErr(s.bdb.Close())
}
