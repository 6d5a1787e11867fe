package retrograde

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"

	"github.com/GamesCrafters/nova/game"
	"github.com/GamesCrafters/nova/record"
)

// graphGame is a fixture whose move graph is given explicitly, so
// tests can build exactly the shapes (cycles, escapes, tie pockets)
// they want to exercise.
type graphGame struct {
	players int
	succ    map[game.State][]game.State
	term    map[game.State][]game.SUtility
	turn    map[game.State]int
}

func st(u uint64) game.State { return game.StateFromUint64(u) }

func (g *graphGame) Name() string      { return "graph-fixture" }
func (g *graphGame) Players() int      { return g.players }
func (g *graphGame) StateSize() int    { return 8 }
func (g *graphGame) Start() game.State { return st(0) }

func (g *graphGame) Turn(s game.State) int {
	return g.turn[s]
}

func (g *graphGame) Successors(s game.State) []game.State {
	return g.succ[s]
}

func (g *graphGame) Terminal(s game.State) bool {
	_, ok := g.term[s]
	return ok
}

func (g *graphGame) Utility(s game.State) []game.SUtility {
	return g.term[s]
}

func (g *graphGame) Capabilities() game.CapabilitySet {
	return game.Capabilities(game.Cyclic)
}

func (g *graphGame) states() []game.State {
	seen := make(map[game.State]bool)
	var out []game.State
	add := func(s game.State) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for s, kids := range g.succ {
		add(s)
		for _, k := range kids {
			add(k)
		}
	}
	for s := range g.term {
		add(s)
	}
	return out
}

// loseTerm marks s as a terminal loss for its mover.
func (g *graphGame) loseTerm(s game.State) {
	util := make([]game.SUtility, g.players)
	for i := range util {
		util[i] = game.WinUtility
	}
	util[g.turn[s]] = game.LoseUtility
	g.term[s] = util
}

func newGraph() *graphGame {
	return &graphGame{
		players: 2,
		succ:    make(map[game.State][]game.State),
		term:    make(map[game.State][]game.SUtility),
		turn:    make(map[game.State]int),
	}
}

func solve(t *testing.T, g *graphGame) map[game.State]record.Value {
	t.Helper()
	values, err := Solve(context.Background(), g, g.states(), EmptySource{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	return values
}

func TestChainAlternatesWinLose(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	// 3 -> 2 -> 1 -> 0, one move each; facing 0 loses.
	g.succ[st(3)] = []game.State{st(2)}
	g.succ[st(2)] = []game.State{st(1)}
	g.succ[st(1)] = []game.State{st(0)}
	g.turn[st(3)], g.turn[st(2)], g.turn[st(1)], g.turn[st(0)] = 0, 1, 0, 1
	g.loseTerm(st(0))

	v := solve(t, g)
	is.Equal(v[st(0)].Outcome, record.Lose)
	is.Equal(v[st(0)].Remoteness, record.Remoteness(0))
	is.Equal(v[st(1)].Outcome, record.Win)
	is.Equal(v[st(1)].Remoteness, record.Remoteness(1))
	is.Equal(v[st(2)].Outcome, record.Lose)
	is.Equal(v[st(2)].Remoteness, record.Remoteness(2))
	is.Equal(v[st(3)].Outcome, record.Win)
	is.Equal(v[st(3)].Remoteness, record.Remoteness(3))
}

func TestPureCycleIsDraw(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	g.succ[st(1)] = []game.State{st(2)}
	g.succ[st(2)] = []game.State{st(1)}

	v := solve(t, g)
	is.Equal(v[st(1)].Outcome, record.Draw)
	is.Equal(v[st(1)].Remoteness, record.RemotenessMax)
	is.Equal(v[st(2)].Outcome, record.Draw)
}

func TestCycleWithWinningEscape(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	// 1 <-> 2, and 2 can also end the game at 9 (loss for its mover).
	g.succ[st(1)] = []game.State{st(2)}
	g.succ[st(2)] = []game.State{st(1), st(9)}
	g.turn[st(9)] = 0
	g.loseTerm(st(9))

	v := solve(t, g)
	is.Equal(v[st(2)].Outcome, record.Win)
	is.Equal(v[st(2)].Remoteness, record.Remoteness(1))
	// 1's only move hands the opponent the win; with no escape of its
	// own it must take it: a loss in 2.
	is.Equal(v[st(1)].Outcome, record.Lose)
	is.Equal(v[st(1)].Remoteness, record.Remoteness(2))
}

func TestTiePropagatesThroughUndecidedRegion(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	// 5 can tie immediately or spin through 6 forever; 6 only reaches
	// 5. Neither can win, so both should settle as ties, not draws.
	g.succ[st(5)] = []game.State{st(8), st(6)}
	g.succ[st(6)] = []game.State{st(5)}
	g.term[st(8)] = []game.SUtility{game.TieUtility, game.TieUtility}

	v := solve(t, g)
	is.Equal(v[st(8)].Outcome, record.Tie)
	is.Equal(v[st(8)].Remoteness, record.Remoteness(0))
	is.Equal(v[st(5)].Outcome, record.Tie)
	is.Equal(v[st(5)].Remoteness, record.Remoteness(1))
	is.Equal(v[st(6)].Outcome, record.Tie)
	is.Equal(v[st(6)].Remoteness, record.Remoteness(2))
}

func TestTieUtilityCarriesThroughSettledRegion(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	// General-sum tie: nobody can force an end, but the reachable tie
	// terminal pays player 1 five. That payoff belongs to every state
	// whose best play reaches it, however deep in the undecided region.
	g.succ[st(5)] = []game.State{st(8), st(6)}
	g.succ[st(6)] = []game.State{st(5)}
	g.succ[st(7)] = []game.State{st(6)}
	g.succ[st(6)] = append(g.succ[st(6)], st(7))
	g.term[st(8)] = []game.SUtility{0, 5}

	v := solve(t, g)
	is.Equal(v[st(8)].Utility, []int8{0, 5})
	is.Equal(v[st(5)].Outcome, record.Tie)
	is.Equal(v[st(5)].Utility, []int8{0, 5})
	is.Equal(v[st(6)].Utility, []int8{0, 5})
	is.Equal(v[st(7)].Outcome, record.Tie)
	is.Equal(v[st(7)].Remoteness, record.Remoteness(3))
	is.Equal(v[st(7)].Utility, []int8{0, 5})
}

func TestDrawPreferredOverLoss(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	// 1's options: hand the opponent a win at 9, or loop at 2. A
	// perfect player loops forever rather than lose.
	g.succ[st(1)] = []game.State{st(9), st(2)}
	g.succ[st(2)] = []game.State{st(2)}
	g.turn[st(9)] = 1
	util := make([]game.SUtility, 2)
	util[1] = game.WinUtility
	util[0] = game.LoseUtility
	g.term[st(9)] = util

	v := solve(t, g)
	is.Equal(v[st(9)].Outcome, record.Win) // terminal win for its mover
	is.Equal(v[st(1)].Outcome, record.Draw)
	is.Equal(v[st(1)].Remoteness, record.RemotenessMax)
}

// chain hangs a forced line of `moves` moves under base, ending in a
// terminal loss. base's value alternates by parity: Win for odd move
// counts, Lose for even, at remoteness `moves`.
func (g *graphGame) chain(base game.State, moves int, tag uint64) {
	cur := base
	for i := 0; i < moves; i++ {
		next := st(tag + uint64(i))
		g.succ[cur] = append(g.succ[cur], next)
		cur = next
	}
	g.loseTerm(cur)
}

func TestFastestWinAndSlowestLoss(t *testing.T) {
	is := is.New(t)

	g := newGraph()
	// 100's children are losing positions at distances 2 and 4: a
	// perfect mover takes the faster win.
	a, b := st(101), st(102)
	g.succ[st(100)] = []game.State{a, b}
	g.chain(a, 2, 200) // a loses in 2
	g.chain(b, 4, 300) // b loses in 4

	v := solve(t, g)
	is.Equal(v[a].Outcome, record.Lose)
	is.Equal(v[a].Remoteness, record.Remoteness(2))
	is.Equal(v[b].Outcome, record.Lose)
	is.Equal(v[b].Remoteness, record.Remoteness(4))
	is.Equal(v[st(100)].Outcome, record.Win)
	is.Equal(v[st(100)].Remoteness, record.Remoteness(3)) // fastest win

	// 400's children are both winning for the opponent, at 1 and 3:
	// a perfect loser delays to the slower one.
	h := newGraph()
	c, d := st(401), st(402)
	h.succ[st(400)] = []game.State{c, d}
	h.chain(c, 1, 500)
	h.chain(d, 3, 600)
	w := solve(t, h)
	is.Equal(w[c].Outcome, record.Win)
	is.Equal(w[c].Remoteness, record.Remoteness(1))
	is.Equal(w[d].Outcome, record.Win)
	is.Equal(w[d].Remoteness, record.Remoteness(3))
	is.Equal(w[st(400)].Outcome, record.Lose)
	is.Equal(w[st(400)].Remoteness, record.Remoteness(4)) // slowest loss
}

// mapSource serves out-of-tier lookups from a fixed table.
type mapSource map[game.State]record.Value

func (m mapSource) Lookup(s game.State) (record.Value, error) {
	v, ok := m[s]
	if !ok {
		return record.Value{}, fmt.Errorf("%w: %s", ErrTierEscape, s)
	}
	return v, nil
}

func TestCrossTierChildrenMergeAtTheirRemoteness(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	// 1 can move to an in-tier terminal loss chain (win in 1 via 9)
	// or to an out-of-tier losing position at remoteness 6. The
	// faster in-tier win must prevail.
	out := st(1000)
	g.succ[st(1)] = []game.State{st(9), out}
	g.loseTerm(st(9))

	src := mapSource{out: {
		Outcome: record.Lose, Remoteness: 6, Player: 1, Utility: []int8{1, -1},
	}}
	states := []game.State{st(1), st(9)}
	v, err := Solve(context.Background(), g, states, src, Options{})
	is.NoErr(err)
	is.Equal(v[st(1)].Outcome, record.Win)
	is.Equal(v[st(1)].Remoteness, record.Remoteness(1))
	_, inTierOnly := v[out]
	is.True(!inTierOnly) // borrowed values are not re-persisted
}

func TestCrossTierDrawChild(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	// 1's only children are an out-of-tier draw and an out-of-tier
	// win for the opponent: perpetual play beats losing.
	g.succ[st(1)] = []game.State{st(1000), st(1001)}
	src := mapSource{
		st(1000): {Outcome: record.Draw, Remoteness: record.RemotenessMax, Utility: []int8{0, 0}},
		st(1001): {Outcome: record.Win, Remoteness: 2, Player: 1, Utility: []int8{-1, 1}},
	}
	v, err := Solve(context.Background(), g, []game.State{st(1)}, src, Options{})
	is.NoErr(err)
	is.Equal(v[st(1)].Outcome, record.Draw)
}

func TestTierEscapeFailsTheSolve(t *testing.T) {
	is := is.New(t)
	g := newGraph()
	g.succ[st(1)] = []game.State{st(999)}
	_, err := Solve(context.Background(), g, []game.State{st(1)}, EmptySource{}, Options{})
	is.True(errors.Is(err, ErrTierEscape))
}

func TestParallelWorkersAgreeWithSerial(t *testing.T) {
	is := is.New(t)
	build := func() *graphGame {
		g := newGraph()
		// A ladder with rungs: plenty of states per layer so the
		// shard split actually happens.
		const n = 400
		for i := uint64(0); i < n; i++ {
			g.succ[st(i)] = append(g.succ[st(i)], st(i+1))
			if i%3 == 0 && i+2 <= n {
				g.succ[st(i)] = append(g.succ[st(i)], st(i+2))
			}
			g.turn[st(i)] = int(i % 2)
		}
		g.turn[st(400)] = 0
		g.loseTerm(st(400))
		return g
	}
	serial, err := Solve(context.Background(), build(), build().states(),
		EmptySource{}, Options{Workers: 1})
	is.NoErr(err)
	parallel, err := Solve(context.Background(), build(), build().states(),
		EmptySource{}, Options{Workers: 8})
	is.NoErr(err)
	is.Equal(len(serial), len(parallel))
	for s, v := range serial {
		p := parallel[s]
		is.Equal(p.Outcome, v.Outcome)
		is.Equal(p.Remoteness, v.Remoteness)
	}
}
