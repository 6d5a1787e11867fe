// Package db defines the uniform key-value contract that every storage
// backend satisfies. The solver writes one immutable record per state
// and reads them back by point lookup; ordered backends additionally
// benefit from the keys being written in mostly-sorted bulk passes.
//
// Three backends implement Database: volatile (in-memory, no I/O),
// bplus (on-disk paged B+ tree) and lsm (BadgerDB). The dispatcher
// selects one per run.
package db

import (
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// Mode controls how a database identifier is opened.
type Mode int

const (
	// ModeNone performs no disk I/O at all; only the volatile backend
	// accepts it.
	ModeNone Mode = iota
	ModeRead
	ModeWrite
	ModeReadWrite
)

func (m Mode) Readable() bool { return m == ModeRead || m == ModeReadWrite || m == ModeNone }
func (m Mode) Writable() bool { return m == ModeWrite || m == ModeReadWrite || m == ModeNone }

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRead:
		return "read-only"
	case ModeWrite:
		return "write-only"
	case ModeReadWrite:
		return "read-write"
	}
	return "invalid"
}

// Options configures opening a backend.
type Options struct {
	// Path is the backend identifier: a file for bplus, a directory
	// for lsm. Ignored by volatile.
	Path string
	Mode Mode
	// Truncate discards existing contents when opening writable. An
	// existing identifier is otherwise preserved.
	Truncate bool
}

// Database is the uniform backend contract. Implementations must allow
// concurrent Put calls for distinct keys and concurrent Get calls;
// the solving path never mixes Put and Get on the same key.
type Database interface {
	// Put upserts. Writing identical bytes under the same key twice
	// is a safe no-op in effect; records never change once computed.
	Put(key, value []byte) error

	// Get returns the stored bytes, or nil with no error if the key
	// is absent. Absence means "not yet solved", not a failure.
	Get(key []byte) ([]byte, error)

	// Delete removes a key. Maintenance only; the solving path never
	// deletes.
	Delete(key []byte) error

	// Sync flushes buffered writes to the backing medium.
	Sync() error

	Close() error
}

var (
	// ErrNotFound means the identifier itself does not exist when
	// opening read-only. Key absence is not an error.
	ErrNotFound = errors.New("db: not found")
	// ErrCorrupt means the medium failed an integrity check. Never
	// retried, never silently treated as absence.
	ErrCorrupt = errors.New("db: corrupt")
	// ErrReadOnly means a write was attempted on a read-only handle.
	ErrReadOnly = errors.New("db: read-only")
	// ErrWriteOnly means a read was attempted on a write-only handle.
	ErrWriteOnly = errors.New("db: write-only")
	// ErrClosed means the handle was already closed.
	ErrClosed = errors.New("db: closed")
	// ErrTransient wraps failures worth retrying, such as the medium
	// being temporarily locked or unavailable.
	ErrTransient = errors.New("db: transient")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

const (
	retryAttempts = 3
	retryDelay    = 25 * time.Millisecond
)

// WithRetry runs op, retrying transient failures a bounded number of
// times before escalating. Corruption and every other error class
// fail immediately.
func WithRetry(op func() error) error {
	return retry.Do(op,
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
	)
}
