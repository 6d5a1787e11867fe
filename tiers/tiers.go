// Package tiers builds the dependency graph over a tiered game's state
// space partitions and schedules them for solving. Cross-tier edges
// must form a DAG; that is what lets a tier be solved once all the
// tiers it can transition into are fully persisted, even when moves
// inside a tier cycle.
package tiers

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/GamesCrafters/nova/game"
)

// ErrCyclicTierGraph means the game's tier-child relation contains a
// cycle among tiers. This is a fatal configuration error, distinct
// from cycles between states inside one tier, which are expected.
var ErrCyclicTierGraph = errors.New("tiers: cyclic tier graph")

// Graph is the closed tier DAG of one game, built once per solve and
// read-only afterwards.
type Graph struct {
	children map[game.Tier][]game.Tier
	order    []game.Tier
}

// Build computes the reachability closure over child-tier edges from
// the game's start tier and verifies acyclicity. It fails before any
// solving happens, so a cyclic configuration never partially solves.
func Build(g game.TieredGame) (*Graph, error) {
	graph := &Graph{children: make(map[game.Tier][]game.Tier)}

	// Closure by breadth-first discovery; discovery order also breaks
	// ties between independent tiers, keeping runs reproducible.
	queue := []game.Tier{g.StartTier()}
	graph.children[queue[0]] = nil
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		kids := g.ChildTiers(t)
		graph.children[t] = kids
		for _, k := range kids {
			if k == t {
				return nil, fmt.Errorf("%w: tier %d lists itself as a child",
					ErrCyclicTierGraph, t)
			}
			if _, seen := graph.children[k]; !seen {
				graph.children[k] = nil
				queue = append(queue, k)
			}
		}
	}

	if err := graph.sort(g.StartTier()); err != nil {
		return nil, err
	}
	log.Debug().Int("tiers", len(graph.order)).Msg("tier graph built")
	return graph, nil
}

const (
	unvisited = 0
	onStack   = 1
	finished  = 2
)

// sort runs an iterative depth-first search producing a postorder:
// every tier appears after all of its descendants. A back edge to a
// tier still on the stack is a cycle.
func (g *Graph) sort(start game.Tier) error {
	state := make(map[game.Tier]int, len(g.children))

	type frame struct {
		tier game.Tier
		next int
	}
	stack := []frame{{tier: start}}
	state[start] = onStack
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		kids := g.children[f.tier]
		if f.next < len(kids) {
			k := kids[f.next]
			f.next++
			switch state[k] {
			case onStack:
				return fmt.Errorf("%w: tier %d reaches back to tier %d",
					ErrCyclicTierGraph, f.tier, k)
			case unvisited:
				state[k] = onStack
				stack = append(stack, frame{tier: k})
			}
			continue
		}
		state[f.tier] = finished
		g.order = append(g.order, f.tier)
		stack = stack[:len(stack)-1]
	}
	return nil
}

// Order returns the solving order: dependency-first, so every tier
// follows all tiers it depends on. Any linearization respecting that
// constraint is valid.
func (g *Graph) Order() []game.Tier {
	return g.order
}

// Children returns the child tiers of t in the closed graph.
func (g *Graph) Children(t game.Tier) []game.Tier {
	return g.children[t]
}

// Descendants returns the transitive child closure of t, excluding t
// itself. The retrograde engine's out-of-tier lookups are only legal
// within this set; anything else is an ancestor edge, which the DAG
// contract forbids.
func (g *Graph) Descendants(t game.Tier) map[game.Tier]bool {
	out := make(map[game.Tier]bool)
	queue := append([]game.Tier(nil), g.Children(t)...)
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if out[k] {
			continue
		}
		out[k] = true
		queue = append(queue, g.Children(k)...)
	}
	return out
}

// Size returns the number of reachable tiers.
func (g *Graph) Size() int {
	return len(g.order)
}

// Markers persists tier completeness so a resumed run can skip work.
// The solver's record store implements this on top of the Database
// contract.
type Markers interface {
	MarkSolved(t game.Tier) error
	IsSolved(t game.Tier) (bool, error)
}

// Scheduler drives tiers through the solving order strictly
// sequentially: a tier never starts before everything it depends on
// is fully persisted.
type Scheduler struct {
	graph   *Graph
	markers Markers
}

func NewScheduler(g *Graph, m Markers) *Scheduler {
	return &Scheduler{graph: g, markers: m}
}

// Run calls solve once per unsolved tier in dependency order, marking
// each solved only after solve returns cleanly. Cancellation is
// honored between tiers; an aborted tier was never marked and is safe
// to recompute.
func (s *Scheduler) Run(ctx context.Context, solve func(game.Tier) error) error {
	for i, t := range s.graph.Order() {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := s.markers.IsSolved(t)
		if err != nil {
			return fmt.Errorf("tier %d completeness check: %w", t, err)
		}
		if done {
			log.Debug().Uint64("tier", uint64(t)).Msg("tier already solved, skipping")
			continue
		}
		log.Info().Uint64("tier", uint64(t)).
			Int("position", i+1).Int("of", s.graph.Size()).
			Msg("solving tier")
		if err := solve(t); err != nil {
			return fmt.Errorf("tier %d: %w", t, err)
		}
		if err := s.markers.MarkSolved(t); err != nil {
			return fmt.Errorf("tier %d mark solved: %w", t, err)
		}
	}
	return nil
}
