// Package game defines the capability contract that a game must satisfy
// for the solver core to compute its values. The core never looks inside
// a game's states beyond their fixed-width byte encoding; the game owns
// the semantic mapping between its native representation and the State
// key, and declares the structural capabilities of its state graph so
// the dispatcher can pick a strategy.
package game

import (
	"fmt"
	"strings"
)

// StateBytes is the width of the State key type. Games with narrower
// state spaces use the low-order bytes and declare their significant
// width through StateSize; storage backends key off only that many
// bytes.
const StateBytes = 8

// State is a fixed-width, bit-exact position identifier. It is opaque
// to the core beyond equality, hashing and byte ordering. Encoding is
// big-endian so that the byte order of keys matches numeric order,
// which ordered backends rely on for sequential writes.
type State [StateBytes]byte

// StateFromUint64 packs u into a State in big-endian order.
func StateFromUint64(u uint64) State {
	var s State
	for i := StateBytes - 1; i >= 0; i-- {
		s[i] = byte(u)
		u >>= 8
	}
	return s
}

// Uint64 unpacks a big-endian State back into its integer form.
func (s State) Uint64() uint64 {
	var u uint64
	for i := 0; i < StateBytes; i++ {
		u = u<<8 | uint64(s[i])
	}
	return u
}

// Key returns the significant low-order bytes of s for a game whose
// declared state width is size bytes.
func (s State) Key(size int) []byte {
	return s[StateBytes-size:]
}

// StateFromKey reconstructs a State from a storage key previously
// produced by Key.
func StateFromKey(k []byte) State {
	var s State
	copy(s[StateBytes-len(k):], k)
	return s
}

func (s State) String() string {
	return fmt.Sprintf("%#016x", s.Uint64())
}

// Capability is one structural property of a game's state graph.
type Capability uint8

const (
	// Tree: no state is reachable by more than one move sequence.
	Tree Capability = 1 << iota
	// Acyclic: states may be shared between move sequences, but no
	// move sequence revisits a state.
	Acyclic
	// Cyclic: move sequences may revisit states.
	Cyclic
	// Tiered: the state space admits a partition into tiers whose
	// cross-tier edges form a DAG.
	Tiered
)

// CapabilitySet is the set of capabilities a game declares. More than
// one may apply; the dispatcher picks the most specific.
type CapabilitySet uint8

func Capabilities(caps ...Capability) CapabilitySet {
	var set CapabilitySet
	for _, c := range caps {
		set |= CapabilitySet(c)
	}
	return set
}

func (s CapabilitySet) Has(c Capability) bool {
	return s&CapabilitySet(c) != 0
}

func (s CapabilitySet) Empty() bool {
	return s == 0
}

func (s CapabilitySet) String() string {
	var names []string
	for _, c := range []struct {
		cap  Capability
		name string
	}{{Tree, "tree"}, {Acyclic, "acyclic"}, {Cyclic, "cyclic"}, {Tiered, "tiered"}} {
		if s.Has(c.cap) {
			names = append(names, c.name)
		}
	}
	return strings.Join(names, ",")
}

// SUtility is a simple per-player utility value at a terminal state.
type SUtility int8

const (
	LoseUtility SUtility = -1
	TieUtility  SUtility = 0
	WinUtility  SUtility = 1
)

// Tier identifies one partition of a tiered game's state space.
type Tier uint64

// Game is the core contract. All methods must be safe for concurrent
// use; the retrograde engine calls Successors and Terminal from
// multiple goroutines while solving a tier.
type Game interface {
	// Name returns the game's registry name.
	Name() string

	// Players returns the number of players, at least 1.
	Players() int

	// StateSize returns the number of significant key bytes of this
	// game's states, between 1 and StateBytes.
	StateSize() int

	// Start returns the initial state for the configured variant.
	Start() State

	// Turn returns the player to move at s, in [0, Players).
	Turn(s State) int

	// Successors returns the legal-move successors of s. A state with
	// no successors is terminal.
	Successors(s State) []State

	// Terminal reports whether s has no legal moves.
	Terminal(s State) bool

	// Utility returns the per-player utility vector at a terminal
	// state. Behavior is undefined for non-terminal states.
	Utility(s State) []SUtility

	// Capabilities returns the declared structural capability set.
	Capabilities() CapabilitySet
}

// TieredGame is implemented in addition to Game by games that declare
// the Tiered capability. The tier-child relation must form a DAG over
// the tiers reachable from StartTier; intra-tier cycles are fine.
type TieredGame interface {
	Game

	// StartTier returns the tier containing the initial state.
	StartTier() Tier

	// Tier returns the tier containing s.
	Tier(s State) Tier

	// ChildTiers returns the tiers that states in t can transition
	// into, excluding t itself.
	ChildTiers(t Tier) []Tier

	// TierStates enumerates every state belonging to t.
	TierStates(t Tier) []State
}
