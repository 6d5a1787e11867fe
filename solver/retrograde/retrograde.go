// Package retrograde implements the value-iteration core: given one
// tier whose internal move graph may contain cycles, and read access
// to the already-solved values of every out-of-tier state the tier
// references, it computes the exact value and remoteness of every
// state in the tier.
//
// The algorithm is a breadth-first expansion from terminal states in
// increasing remoteness order. Each state tracks how many of its
// children remain unresolved; a state finalizes as soon as a child
// resolves to a loss for its mover (a win for us, at the minimum such
// remoteness plus one), or once every child has resolved (the best
// surviving outcome, with losses taking the maximum remoteness plus
// one, since a perfect opponent delays). States the expansion never
// decides are settled in a second pass: a recorded tie option beats
// perpetual play, everything else is a draw at the unbounded
// remoteness sentinel.
package retrograde

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/GamesCrafters/nova/game"
	"github.com/GamesCrafters/nova/record"
)

// ErrTierEscape means a state transitioned outside the current tier
// and its solved descendants. That violates the tier DAG contract and
// indicates a bug in the game implementation.
var ErrTierEscape = errors.New("retrograde: successor escapes the tier graph")

// ErrUnresolved means the engine finished with states it never
// classified, which cannot happen unless an invariant was broken.
var ErrUnresolved = errors.New("retrograde: unresolved states after solve")

// Source resolves out-of-tier successors from already-solved tiers.
// A lookup for a state that is not in a solved descendant tier must
// fail, wrapping ErrTierEscape.
type Source interface {
	Lookup(s game.State) (record.Value, error)
}

// EmptySource is the Source for single-tier solves, where every
// successor must stay inside the tier.
type EmptySource struct{}

func (EmptySource) Lookup(s game.State) (record.Value, error) {
	return record.Value{}, fmt.Errorf("%w: %s has no home tier", ErrTierEscape, s)
}

// Options tunes a solve. Workers bounds the per-layer parallelism; 0
// means one worker per CPU.
type Options struct {
	Workers int
}

type cell struct {
	remaining int
	resolved  bool
	best      record.Best
}

type entry struct {
	state game.State
	val   record.Value
}

type engine struct {
	g        game.Game
	src      Source
	workers  int
	cells    map[game.State]*cell
	preds    map[game.State][]game.State
	values   map[game.State]record.Value // in-tier results
	borrowed map[game.State]record.Value // out-of-tier children
	buckets  map[record.Remoteness][]entry
	maxLayer record.Remoteness
}

// Solve computes the value of every state in states. The slice is one
// tier's full population; successors outside it are resolved through
// src.
func Solve(ctx context.Context, g game.Game, states []game.State,
	src Source, opts Options) (map[game.State]record.Value, error) {

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e := &engine{
		g:        g,
		src:      src,
		workers:  workers,
		cells:    make(map[game.State]*cell, len(states)),
		preds:    make(map[game.State][]game.State),
		values:   make(map[game.State]record.Value, len(states)),
		borrowed: make(map[game.State]record.Value),
		buckets:  make(map[record.Remoteness][]entry),
	}
	if err := e.build(states); err != nil {
		return nil, err
	}
	if err := e.expand(ctx); err != nil {
		return nil, err
	}
	e.settle()
	if len(e.values) != len(e.cells) {
		return nil, fmt.Errorf("%w: %d of %d states",
			ErrUnresolved, len(e.cells)-len(e.values), len(e.cells))
	}
	return e.values, nil
}

func utilityVector(g game.Game, s game.State) []int8 {
	su := g.Utility(s)
	util := make([]int8, len(su))
	for i, u := range su {
		util[i] = int8(u)
	}
	return util
}

func outcomeOf(util []int8, player int) record.Outcome {
	switch {
	case util[player] > 0:
		return record.Win
	case util[player] < 0:
		return record.Lose
	default:
		return record.Tie
	}
}

// build walks every state once, seeding terminal values, counting
// unresolved children, recording intra-tier predecessors, and merging
// already-solved out-of-tier children into the expansion at their own
// remoteness layer.
func (e *engine) build(states []game.State) error {
	for _, s := range states {
		if _, dup := e.cells[s]; dup {
			continue
		}
		e.cells[s] = &cell{}
	}
	terminals := 0
	for s := range e.cells {
		succs := e.g.Successors(s)
		if len(succs) == 0 || e.g.Terminal(s) {
			util := utilityVector(e.g, s)
			v := record.Value{
				Outcome:    outcomeOf(util, e.g.Turn(s)),
				Remoteness: 0,
				Player:     e.g.Turn(s),
				Utility:    util,
			}
			e.finalize(s, v)
			e.enqueue(0, entry{state: s, val: v})
			terminals++
			continue
		}
		seen := make(map[game.State]struct{}, len(succs))
		c := e.cells[s]
		for _, child := range succs {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			if _, in := e.cells[child]; in {
				c.remaining++
				e.preds[child] = append(e.preds[child], s)
				continue
			}
			v, err := e.borrow(child)
			if err != nil {
				return err
			}
			if v.Outcome == record.Draw {
				// A drawn child can never decide anything better
				// than a draw, and it never resolves at a finite
				// layer. Leaving the count up correctly blocks a
				// Lose finalization.
				c.remaining++
				continue
			}
			c.remaining++
			e.preds[child] = append(e.preds[child], s)
		}
	}
	log.Debug().Int("states", len(e.cells)).Int("terminals", terminals).
		Msg("retrograde build complete")
	return nil
}

// borrow fetches (once) the solved value of an out-of-tier child and
// schedules it at its remoteness layer.
func (e *engine) borrow(child game.State) (record.Value, error) {
	if v, ok := e.borrowed[child]; ok {
		return v, nil
	}
	v, err := e.src.Lookup(child)
	if err != nil {
		return record.Value{}, err
	}
	e.borrowed[child] = v
	if v.Outcome != record.Draw {
		e.enqueue(v.Remoteness, entry{state: child, val: v})
	}
	return v, nil
}

func (e *engine) enqueue(layer record.Remoteness, en entry) {
	e.buckets[layer] = append(e.buckets[layer], en)
	if layer > e.maxLayer {
		e.maxLayer = layer
	}
}

// finalize records an in-tier state's value. Scheduling for
// predecessor processing is the caller's job: terminals enter at
// layer zero, later finalizations at the layer after the one that
// produced them.
func (e *engine) finalize(s game.State, v record.Value) {
	e.cells[s].resolved = true
	e.values[s] = v
}

type update struct {
	pred game.State
	val  record.Value // the resolved child's value
}

// expand runs the frontier layer by layer. Within a layer, predecessor
// updates are partitioned by state hash across workers, so each state
// is touched by exactly one goroutine; the errgroup wait is the
// barrier between layers, which is what keeps the minimum-win and
// maximum-loss remoteness policies exact.
func (e *engine) expand(ctx context.Context) error {
	for layer := record.Remoteness(0); layer <= e.maxLayer; layer++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		bucket := e.buckets[layer]
		if len(bucket) == 0 {
			continue
		}
		delete(e.buckets, layer)

		shards := make([][]update, e.workers)
		for _, en := range bucket {
			for _, p := range e.preds[en.state] {
				w := int(xxhash.Sum64(p[:]) % uint64(e.workers))
				shards[w] = append(shards[w], update{pred: p, val: en.val})
			}
		}

		finals := make([][]entry, e.workers)
		var eg errgroup.Group
		for w := 0; w < e.workers; w++ {
			w := w
			eg.Go(func() error {
				var err error
				finals[w], err = e.apply(shards[w])
				return err
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
		for _, fs := range finals {
			for _, f := range fs {
				e.finalize(f.state, f.val)
				// Ties can finalize below the current layer once a
				// slower sibling exhausts the count; scheduling them
				// here is still exact because note folds candidates
				// by comparison, not arrival order.
				e.enqueue(layer+1, f)
			}
		}
	}
	return nil
}

// apply folds one shard of child resolutions into their predecessors
// and returns the states this layer finalized. It only mutates cells
// owned by its shard.
func (e *engine) apply(ops []update) ([]entry, error) {
	var finals []entry
	for _, op := range ops {
		c := e.cells[op.pred]
		if c.resolved {
			continue
		}
		childRem := op.val.Remoteness
		if childRem >= record.RemotenessCap {
			return nil, fmt.Errorf("retrograde: remoteness overflow at %s", op.pred)
		}
		cand := op.val.Outcome.Flip()
		if cand == record.Win {
			// Decisive: first arrival is the fastest win, since
			// losing children surface in remoteness order.
			c.resolved = true
			finals = append(finals, entry{
				state: op.pred,
				val: record.Value{
					Outcome:    record.Win,
					Remoteness: childRem + 1,
					Player:     e.g.Turn(op.pred),
					Utility:    op.val.Utility,
				},
			})
			continue
		}
		c.remaining--
		c.best.Note(op.val)
		if c.remaining == 0 {
			c.resolved = true
			finals = append(finals, entry{
				state: op.pred,
				val:   c.best.Value(e.g.Turn(op.pred), e.g.Players()),
			})
		}
	}
	return finals, nil
}

// settle decides every state the expansion never finalized. None of
// them can win (a losing child would have decided them) or lose (all
// children winning would have zeroed their count), so each is a tie,
// if some recorded or propagated option reaches one, or a draw. Tie
// distances propagate shortest-first through the undecided region.
func (e *engine) settle() {
	type option struct {
		state game.State
		util  []int8
	}
	pending := make(map[record.Remoteness][]option)
	var maxLayer record.Remoteness

	push := func(s game.State, rem record.Remoteness, util []int8) {
		pending[rem] = append(pending[rem], option{state: s, util: util})
		if rem > maxLayer {
			maxLayer = rem
		}
	}
	for s, c := range e.cells {
		if !c.resolved && c.best.Has && c.best.Outcome == record.Tie {
			util := c.best.Utility
			if util == nil {
				util = make([]int8, e.g.Players())
			}
			push(s, c.best.Remoteness, util)
		}
	}

	for layer := record.Remoteness(0); layer <= maxLayer; layer++ {
		for _, o := range pending[layer] {
			c := e.cells[o.state]
			if c.resolved {
				continue
			}
			c.resolved = true
			e.values[o.state] = record.Value{
				Outcome:    record.Tie,
				Remoteness: layer,
				Player:     e.g.Turn(o.state),
				Utility:    o.util,
			}
			if layer >= record.RemotenessCap {
				continue
			}
			// The tie option's utility travels with the line of play
			// realizing it, not just its distance.
			for _, p := range e.preds[o.state] {
				if !e.cells[p].resolved {
					push(p, layer+1, o.util)
				}
			}
		}
	}

	draws := 0
	for s, c := range e.cells {
		if c.resolved {
			continue
		}
		c.resolved = true
		e.values[s] = record.Value{
			Outcome:    record.Draw,
			Remoteness: record.RemotenessMax,
			Player:     e.g.Turn(s),
			Utility:    make([]int8, e.g.Players()),
		}
		draws++
	}
	if draws > 0 {
		log.Debug().Int("draws", draws).Msg("frontier exhausted with drawn states")
	}
}
