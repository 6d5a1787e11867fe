// Package solver dispatches a game to the cheapest solving strategy
// its declared capability set allows and drives that strategy to a
// fully persisted solution. Tier scheduling, value iteration and
// storage live in their own packages; this one only orchestrates.
package solver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GamesCrafters/nova/game"
	"github.com/GamesCrafters/nova/record"
	"github.com/GamesCrafters/nova/solver/dfs"
	"github.com/GamesCrafters/nova/solver/retrograde"
	"github.com/GamesCrafters/nova/tiers"
)

// ErrNoStrategy means the game declared an empty capability set, so
// no solver applies. Fatal configuration error.
var ErrNoStrategy = errors.New("solver: game declares no solving capability")

// Strategy identifies one concrete solving approach.
type Strategy uint8

const (
	StrategyTree Strategy = iota
	StrategyAcyclic
	StrategyCyclic
	StrategyTiered
)

// strategyNames maps strategies to their interface names. Immutable
// after initialization.
var strategyNames = map[Strategy]string{
	StrategyTree:    "tree",
	StrategyAcyclic: "acyclic",
	StrategyCyclic:  "cyclic",
	StrategyTiered:  "tier",
}

func (s Strategy) String() string {
	return strategyNames[s]
}

// Select picks the most specific applicable strategy: Tree beats
// Acyclic beats Cyclic beats Tiered, since more structure means less
// work per state.
func Select(caps game.CapabilitySet) (Strategy, error) {
	switch {
	case caps.Has(game.Tree):
		return StrategyTree, nil
	case caps.Has(game.Acyclic):
		return StrategyAcyclic, nil
	case caps.Has(game.Cyclic):
		return StrategyCyclic, nil
	case caps.Has(game.Tiered):
		return StrategyTiered, nil
	}
	return 0, ErrNoStrategy
}

// Options tunes a solve run.
type Options struct {
	// Workers bounds per-layer parallelism in the retrograde engine.
	// Zero means one per CPU.
	Workers int
}

// Solve computes and persists the value of every reachable state of
// g through store. It is safe to re-run: a tiered solve skips tiers
// whose completeness markers exist, and recomputing anything else
// rewrites identical records.
func Solve(ctx context.Context, g game.Game, store *Store, opts Options) error {
	strat, err := Select(g.Capabilities())
	if err != nil {
		return fmt.Errorf("%w (declared: %q)", err, g.Capabilities().String())
	}
	log.Info().Str("game", g.Name()).Stringer("strategy", strat).Msg("solving")

	switch strat {
	case StrategyTree:
		return solveDepthFirst(ctx, g, store, false)
	case StrategyAcyclic:
		return solveDepthFirst(ctx, g, store, true)
	case StrategyCyclic:
		return solveCyclic(ctx, g, store, opts)
	case StrategyTiered:
		return solveTiered(ctx, g, store, opts)
	}
	return ErrNoStrategy
}

func solveDepthFirst(ctx context.Context, g game.Game, store *Store, memoize bool) error {
	values, err := dfs.Solve(ctx, g, memoize)
	if err != nil {
		return err
	}
	if err := persist(store, values); err != nil {
		return err
	}
	return store.Sync()
}

// solveCyclic treats the whole reachable space as one tier and runs
// the retrograde engine over it with no external source.
func solveCyclic(ctx context.Context, g game.Game, store *Store, opts Options) error {
	states := reachable(g)
	log.Debug().Int("states", len(states)).Msg("reachable space enumerated")
	values, err := retrograde.Solve(ctx, g, states, retrograde.EmptySource{},
		retrograde.Options{Workers: opts.Workers})
	if err != nil {
		return err
	}
	if err := persist(store, values); err != nil {
		return err
	}
	return store.Sync()
}

func solveTiered(ctx context.Context, g game.Game, store *Store, opts Options) error {
	tg, ok := g.(game.TieredGame)
	if !ok {
		return fmt.Errorf("solver: %s declares tiered capability without the tier contract", g.Name())
	}
	graph, err := tiers.Build(tg)
	if err != nil {
		return err
	}
	sched := tiers.NewScheduler(graph, store)
	return sched.Run(ctx, func(t game.Tier) error {
		src := &tierSource{
			store:   store,
			tg:      tg,
			allowed: graph.Descendants(t),
			tier:    t,
		}
		values, err := retrograde.Solve(ctx, tg, tg.TierStates(t), src,
			retrograde.Options{Workers: opts.Workers})
		if err != nil {
			return err
		}
		// Records must be durable before the scheduler marks the
		// tier; MarkSolved syncs before writing the marker.
		return persist(store, values)
	})
}

func persist(store *Store, values map[game.State]record.Value) error {
	for s, v := range values {
		if err := store.Put(s, v); err != nil {
			return fmt.Errorf("persist %s: %w", s, err)
		}
	}
	return nil
}

// tierSource resolves cross-tier successors for one tier solve,
// enforcing at runtime that they live in solved descendant tiers
// only. An edge to an ancestor or sibling tier is a game bug.
type tierSource struct {
	store   *Store
	tg      game.TieredGame
	allowed map[game.Tier]bool
	tier    game.Tier
}

func (ts *tierSource) Lookup(s game.State) (record.Value, error) {
	t := ts.tg.Tier(s)
	if !ts.allowed[t] {
		return record.Value{}, fmt.Errorf(
			"%w: state %s is in tier %d, not a descendant of tier %d",
			retrograde.ErrTierEscape, s, t, ts.tier)
	}
	v, err := ts.store.Get(s)
	if err != nil {
		return record.Value{}, err
	}
	if v == nil {
		return record.Value{}, fmt.Errorf(
			"solver: state %s in solved tier %d has no record", s, t)
	}
	return *v, nil
}

// reachable enumerates the forward closure from the start state.
func reachable(g game.Game) []game.State {
	start := g.Start()
	seen := map[game.State]struct{}{start: {}}
	queue := []game.State{start}
	var out []game.State
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		out = append(out, s)
		for _, c := range g.Successors(s) {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				queue = append(queue, c)
			}
		}
	}
	return out
}
