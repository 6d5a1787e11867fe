// Package zeroby implements the zero-by family of games: some number
// of players take turns removing one of a fixed set of amounts from a
// pile of elements, and the player who faces an empty pile on their
// turn (or no legal removal) loses. It is the canonical plug-in game
// for the solver: small enough to brute-force in tests, rich enough
// to exercise every strategy, including the tiered path by
// partitioning on the pile size.
package zeroby

import (
	"math/bits"

	"github.com/GamesCrafters/nova/game"
)

const Name = "zero-by"

// VariantDefault is two players, ten elements, removing one or two.
const VariantDefault = "2-10-1-2"

// Session is one configured zero-by game.
type Session struct {
	players    int
	startElems uint64
	by         []uint64
	playerBits uint
	caps       game.CapabilitySet
}

// New constructs a session from a variant string; empty selects the
// default. Registered as the game's constructor.
func New(variant string) (game.Game, error) {
	if variant == "" {
		variant = VariantDefault
	}
	return parseVariant(variant)
}

// SetCapabilities overrides the declared capability set, restricted
// to what zero-by actually supports. The state graph is acyclic and
// partitions into tiers by pile size, so any subset of
// {Acyclic, Cyclic, Tiered} is sound; Tree is not, since different
// removal orders reach shared states.
func (s *Session) SetCapabilities(caps game.CapabilitySet) {
	s.caps = caps
}

func (s *Session) Name() string    { return Name }
func (s *Session) Players() int    { return s.players }
func (s *Session) Capabilities() game.CapabilitySet { return s.caps }

// StateSize reports the significant key width: the turn bits plus
// enough bits for the starting pile, rounded up to whole bytes.
func (s *Session) StateSize() int {
	total := int(s.playerBits) + bits.Len64(s.startElems)
	n := (total + 7) / 8
	if n == 0 {
		n = 1
	}
	return n
}

// encode packs a position as elements above the turn bits. Big-endian
// State bytes then sort first by pile size, which matches the tier
// order and keeps bulk writes mostly sequential for ordered backends.
func (s *Session) encode(elems uint64, turn int) game.State {
	return game.StateFromUint64(elems<<s.playerBits | uint64(turn))
}

func (s *Session) decode(st game.State) (elems uint64, turn int) {
	u := st.Uint64()
	return u >> s.playerBits, int(u & (1<<s.playerBits - 1))
}

func (s *Session) Start() game.State {
	return s.encode(s.startElems, 0)
}

func (s *Session) Turn(st game.State) int {
	_, turn := s.decode(st)
	return turn
}

func (s *Session) Successors(st game.State) []game.State {
	elems, turn := s.decode(st)
	next := (turn + 1) % s.players
	var out []game.State
	for _, k := range s.by {
		if k <= elems {
			out = append(out, s.encode(elems-k, next))
		}
	}
	return out
}

func (s *Session) Terminal(st game.State) bool {
	elems, _ := s.decode(st)
	for _, k := range s.by {
		if k <= elems {
			return false
		}
	}
	return true
}

// Utility at a terminal state: the player stuck without a move loses,
// everyone else wins.
func (s *Session) Utility(st game.State) []game.SUtility {
	_, turn := s.decode(st)
	util := make([]game.SUtility, s.players)
	for i := range util {
		if i == turn {
			util[i] = game.LoseUtility
		} else {
			util[i] = game.WinUtility
		}
	}
	return util
}

// Tier partition: one tier per pile size. Every move strictly shrinks
// the pile, so all edges are cross-tier and the tier graph is a DAG
// by construction.

func (s *Session) StartTier() game.Tier {
	return game.Tier(s.startElems)
}

func (s *Session) Tier(st game.State) game.Tier {
	elems, _ := s.decode(st)
	return game.Tier(elems)
}

func (s *Session) ChildTiers(t game.Tier) []game.Tier {
	var out []game.Tier
	seen := make(map[game.Tier]bool)
	for _, k := range s.by {
		if k <= uint64(t) {
			child := game.Tier(uint64(t) - k)
			if !seen[child] {
				seen[child] = true
				out = append(out, child)
			}
		}
	}
	return out
}

func (s *Session) TierStates(t game.Tier) []game.State {
	out := make([]game.State, 0, s.players)
	for turn := 0; turn < s.players; turn++ {
		out = append(out, s.encode(uint64(t), turn))
	}
	return out
}

func minUbits(n uint64) uint {
	b := uint(bits.Len64(n))
	if b == 0 {
		return 1
	}
	return b
}
