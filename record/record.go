// Package record implements the bit-exact codec between solved values
// and their persisted byte form. One record is stored per state. The
// layout, after the multi-utility-remoteness convention:
//
//	[1 byte  flags: bit 7 solved, bits 0-1 outcome]
//	[1 byte  player to move]
//	[2 bytes remoteness, big-endian]
//	[1 byte  player count N]
//	[N bytes per-player utility, signed]
//	[4 bytes integrity checksum]
//
// Remoteness is capped at RemotenessCap; the all-ones value
// RemotenessMax is reserved as the sentinel for Draw states, which
// provably never terminate and therefore carry no finite distance.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash"
)

// Outcome classifies a solved state for the player to move.
type Outcome uint8

const (
	Lose Outcome = iota
	Draw
	Tie
	Win
)

// Outcome values are ordered by preference for the mover: a greater
// Outcome is strictly better. Win > Tie > Draw > Lose.
var outcomeRank = [4]int{Lose: 0, Draw: 1, Tie: 2, Win: 3}

// Beats reports whether o is strictly preferable to p for the mover.
func (o Outcome) Beats(p Outcome) bool {
	return outcomeRank[o] > outcomeRank[p]
}

// Flip converts a child state's outcome into the mover's view of that
// child: the opponent losing is a win for the mover. Tie and Draw are
// symmetric.
func (o Outcome) Flip() Outcome {
	switch o {
	case Win:
		return Lose
	case Lose:
		return Win
	default:
		return o
	}
}

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Lose:
		return "lose"
	case Tie:
		return "tie"
	case Draw:
		return "draw"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Remoteness is the number of moves to a terminal state under perfect
// play: minimized along winning lines, maximized along losing ones.
type Remoteness uint16

const (
	// RemotenessCap is the largest encodable finite remoteness.
	RemotenessCap Remoteness = 0xFFFE
	// RemotenessMax is the Draw sentinel, never a finite distance.
	RemotenessMax Remoteness = 0xFFFF
)

// Value is the solved result for one state.
type Value struct {
	Outcome    Outcome
	Remoteness Remoteness
	// Player is the player to move at the state.
	Player int
	// Utility holds one entry per player. For Draw states it is all
	// zeros.
	Utility []int8
}

const (
	flagSolved  = 0x80
	outcomeMask = 0x03
	headerLen   = 5
	sumLen      = 4
)

// Size returns the encoded record length for a game of players
// players.
func Size(players int) int {
	return headerLen + players + sumLen
}

var (
	// ErrChecksum means the record bytes failed their integrity
	// check. Callers must treat this as corruption, never as absence.
	ErrChecksum = errors.New("record: checksum mismatch")
	// ErrMalformed means the record bytes have an impossible shape.
	ErrMalformed = errors.New("record: malformed")
	// ErrCollision means two different values were written for one
	// state key. Solved values are deterministic facts, so this can
	// only happen when a game's state encoding is not injective.
	ErrCollision = errors.New("record: conflicting values for one state")
)

// Encode serializes v. The solved flag is always set: records exist
// only for resolved states.
func Encode(v Value) []byte {
	buf := make([]byte, Size(len(v.Utility)))
	buf[0] = flagSolved | byte(v.Outcome)&outcomeMask
	buf[1] = byte(v.Player)
	binary.BigEndian.PutUint16(buf[2:4], uint16(v.Remoteness))
	buf[4] = byte(len(v.Utility))
	for i, u := range v.Utility {
		buf[headerLen+i] = byte(u)
	}
	body := buf[:len(buf)-sumLen]
	binary.BigEndian.PutUint32(buf[len(buf)-sumLen:], uint32(xxhash.Sum64(body)))
	return buf
}

// Decode parses record bytes back into a Value. A checksum mismatch
// returns ErrChecksum; anything structurally impossible returns
// ErrMalformed.
func Decode(buf []byte) (Value, error) {
	if len(buf) < headerLen+sumLen {
		return Value{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(buf))
	}
	players := int(buf[4])
	if len(buf) != Size(players) {
		return Value{}, fmt.Errorf("%w: %d bytes for %d players",
			ErrMalformed, len(buf), players)
	}
	body := buf[:len(buf)-sumLen]
	want := binary.BigEndian.Uint32(buf[len(buf)-sumLen:])
	if got := uint32(xxhash.Sum64(body)); got != want {
		return Value{}, fmt.Errorf("%w: have %08x, want %08x",
			ErrChecksum, got, want)
	}
	if buf[0]&flagSolved == 0 {
		return Value{}, fmt.Errorf("%w: solved flag unset", ErrMalformed)
	}
	v := Value{
		Outcome:    Outcome(buf[0] & outcomeMask),
		Remoteness: Remoteness(binary.BigEndian.Uint16(buf[2:4])),
		Player:     int(buf[1]),
		Utility:    make([]int8, players),
	}
	for i := range v.Utility {
		v.Utility[i] = int8(buf[headerLen+i])
	}
	return v, nil
}

func (v Value) String() string {
	if v.Outcome == Draw {
		return "draw"
	}
	return fmt.Sprintf("%s in %d", v.Outcome, v.Remoteness)
}

// Equal reports value equality including the utility vector.
func (v Value) Equal(w Value) bool {
	if v.Outcome != w.Outcome || v.Remoteness != w.Remoteness ||
		v.Player != w.Player || len(v.Utility) != len(w.Utility) {
		return false
	}
	for i := range v.Utility {
		if v.Utility[i] != w.Utility[i] {
			return false
		}
	}
	return true
}
