package zeroby

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/GamesCrafters/nova/game"
)

func mustNew(t *testing.T, variant string) *Session {
	t.Helper()
	g, err := New(variant)
	if err != nil {
		t.Fatal(err)
	}
	return g.(*Session)
}

func TestVariantParsing(t *testing.T) {
	is := is.New(t)

	g := mustNew(t, "")
	is.Equal(g.Players(), 2) // default variant
	is.Equal(g.Name(), Name)

	g = mustNew(t, "3-21-3-4-5")
	is.Equal(g.Players(), 3)
	is.Equal(g.startElems, uint64(21))
	is.Equal(g.by, []uint64{3, 4, 5})

	bad := []string{
		"2",          // no elements or removals
		"2-10",       // no removals
		"0-10-1",     // zero players
		"2-0-1",      // zero elements
		"2-10-0",     // zero removal
		"two-10-1-2", // not integers
		"2-10-1-2-",  // trailing dash
		"128-10-1",   // too many players
	}
	for _, variant := range bad {
		_, err := New(variant)
		is.True(err != nil)
		var verr *game.VariantError
		is.True(errors.As(err, &verr))
		is.Equal(verr.Game, Name)
	}
}

func TestVariantTooLargeToEncode(t *testing.T) {
	is := is.New(t)
	// 2^63 elements plus a turn bit does not fit in a state key.
	_, err := New("2-9223372036854775808-1")
	var verr *game.VariantError
	is.True(errors.As(err, &verr))
}

func TestStateParsing(t *testing.T) {
	is := is.New(t)
	g := mustNew(t, "2-10-1-2")

	st, err := g.ParseState("7-1")
	is.NoErr(err)
	is.Equal(g.FormatState(st), "7-1")
	is.Equal(g.Turn(st), 1)

	st, err = g.ParseState("0-0")
	is.NoErr(err)
	is.True(g.Terminal(st))

	bad := []string{
		"",     // empty
		"7",    // missing turn
		"7-2",  // turn out of range
		"11-0", // more elements than the starting set
		"-1-0", // negative
		"7-1-",
	}
	for _, from := range bad {
		_, err := g.ParseState(from)
		is.True(err != nil)
		var serr *game.StateError
		is.True(errors.As(err, &serr))
	}
}

func TestStartAndMoves(t *testing.T) {
	is := is.New(t)
	g := mustNew(t, "2-10-1-2")

	start := g.Start()
	is.Equal(g.FormatState(start), "10-0")
	is.True(!g.Terminal(start))

	succ := g.Successors(start)
	is.Equal(len(succ), 2)
	is.Equal(g.FormatState(succ[0]), "9-1")
	is.Equal(g.FormatState(succ[1]), "8-1")

	// Only one legal removal when the pile is smaller than the rest.
	one, err := g.ParseState("1-0")
	is.NoErr(err)
	succ = g.Successors(one)
	is.Equal(len(succ), 1)
	is.Equal(g.FormatState(succ[0]), "0-1")
}

func TestTurnRotation(t *testing.T) {
	is := is.New(t)
	g := mustNew(t, "3-9-1")
	s := g.Start()
	for want := 0; want < 6; want++ {
		is.Equal(g.Turn(s), want%3)
		s = g.Successors(s)[0]
	}
}

func TestTerminalUtility(t *testing.T) {
	is := is.New(t)
	g := mustNew(t, "3-9-2-3")

	// With 1 element left, neither removal is legal: the mover loses.
	st, err := g.ParseState("1-2")
	is.NoErr(err)
	is.True(g.Terminal(st))
	is.Equal(g.Utility(st), []game.SUtility{
		game.WinUtility, game.WinUtility, game.LoseUtility,
	})
}

func TestStateCodecIsInjective(t *testing.T) {
	is := is.New(t)
	g := mustNew(t, "3-50-1-2")
	seen := make(map[game.State]string)
	for elems := uint64(0); elems <= 50; elems++ {
		for turn := 0; turn < 3; turn++ {
			st := g.encode(elems, turn)
			prev, dup := seen[st]
			if dup {
				t.Fatalf("states %s and %s collide", prev, g.FormatState(st))
			}
			seen[st] = g.FormatState(st)
			e, tn := g.decode(st)
			is.Equal(e, elems)
			is.Equal(tn, turn)
		}
	}
}

func TestStateSizeCoversStart(t *testing.T) {
	is := is.New(t)
	cases := []struct {
		variant string
		size    int
	}{
		{"2-10-1-2", 1},  // 4 pile bits + 1 turn bit
		{"2-127-1-2", 1}, // 7 + 1
		{"2-128-1-2", 2}, // 8 + 1
		{"7-100-1-2", 2}, // 7 + 3
	}
	for _, c := range cases {
		g := mustNew(t, c.variant)
		is.Equal(g.StateSize(), c.size)
	}
}

func TestTierPartition(t *testing.T) {
	is := is.New(t)
	g := mustNew(t, "2-10-1-2")

	is.Equal(g.StartTier(), game.Tier(10))
	is.Equal(g.Tier(g.Start()), game.Tier(10))
	is.Equal(g.ChildTiers(10), []game.Tier{9, 8})
	is.Equal(g.ChildTiers(1), []game.Tier{0})
	is.Equal(len(g.ChildTiers(0)), 0)

	// Duplicate removal amounts yield one child tier, not two.
	h := mustNew(t, "2-10-2-2")
	is.Equal(h.ChildTiers(10), []game.Tier{8})

	states := g.TierStates(7)
	is.Equal(len(states), 2)
	for i, st := range states {
		is.Equal(g.Tier(st), game.Tier(7))
		is.Equal(g.Turn(st), i)
	}

	// Every successor leaves its tier; that is what makes the pile
	// size a sound partition.
	for _, st := range g.TierStates(5) {
		for _, c := range g.Successors(st) {
			is.True(g.Tier(c) < g.Tier(st))
		}
	}
}

func TestCapabilities(t *testing.T) {
	is := is.New(t)
	g := mustNew(t, "2-10-1-2")
	caps := g.Capabilities()
	is.True(caps.Has(game.Acyclic))
	is.True(caps.Has(game.Cyclic))
	is.True(caps.Has(game.Tiered))
	is.True(!caps.Has(game.Tree))

	g.SetCapabilities(game.Capabilities(game.Cyclic))
	is.True(g.Capabilities().Has(game.Cyclic))
	is.True(!g.Capabilities().Has(game.Acyclic))
}
