// Package dfs implements the depth-first strategies for games whose
// state graphs contain no cycles: plain evaluation for trees, where
// no state is ever shared between lines of play, and memoized
// evaluation for acyclic graphs. Every reachable state's value is
// recorded, since the point of solving is a queryable database, so
// there is no alpha-beta style pruning here.
package dfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/GamesCrafters/nova/game"
	"github.com/GamesCrafters/nova/record"
)

// ErrCycle means a move sequence revisited a state in a game that
// declared itself cycle-free. That is a configuration error in the
// game's capability set.
var ErrCycle = errors.New("dfs: cycle in a game declared acyclic")

type eval struct {
	g      game.Game
	memo   map[game.State]record.Value
	onPath map[game.State]struct{}
	ctx    context.Context
}

// Solve evaluates the full reachable space from the game's start
// state. With memoize set, shared states are computed once; without
// it, the traversal assumes a tree and recomputes nothing because
// nothing repeats. Either way a revisit of the current path aborts
// with ErrCycle.
func Solve(ctx context.Context, g game.Game, memoize bool) (map[game.State]record.Value, error) {
	e := &eval{
		g:      g,
		memo:   make(map[game.State]record.Value),
		onPath: make(map[game.State]struct{}),
		ctx:    ctx,
	}
	if _, err := e.value(g.Start(), memoize); err != nil {
		return nil, err
	}
	return e.memo, nil
}

func (e *eval) value(s game.State, memoize bool) (record.Value, error) {
	if memoize {
		if v, ok := e.memo[s]; ok {
			return v, nil
		}
	}
	if _, revisit := e.onPath[s]; revisit {
		return record.Value{}, fmt.Errorf("%w: %s", ErrCycle, s)
	}
	if err := e.ctx.Err(); err != nil {
		return record.Value{}, err
	}

	succs := e.g.Successors(s)
	if len(succs) == 0 || e.g.Terminal(s) {
		su := e.g.Utility(s)
		util := make([]int8, len(su))
		for i, u := range su {
			util[i] = int8(u)
		}
		turn := e.g.Turn(s)
		var o record.Outcome
		switch {
		case util[turn] > 0:
			o = record.Win
		case util[turn] < 0:
			o = record.Lose
		default:
			o = record.Tie
		}
		v := record.Value{Outcome: o, Remoteness: 0, Player: turn, Utility: util}
		e.memo[s] = v
		return v, nil
	}

	e.onPath[s] = struct{}{}
	var best record.Best
	for _, child := range succs {
		cv, err := e.value(child, memoize)
		if err != nil {
			return record.Value{}, err
		}
		best.Note(cv)
	}
	delete(e.onPath, s)

	v := best.Value(e.g.Turn(s), e.g.Players())
	e.memo[s] = v
	return v, nil
}
