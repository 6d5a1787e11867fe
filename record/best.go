package record

// Best accumulates the mover's view over a state's resolved children
// and yields the game-theoretically correct value under the tie-break
// policy that defines perfect play: outcomes rank Win > Tie > Draw >
// Lose; among winning options the minimum child remoteness is kept
// (fastest win), among ties the minimum, and among losses the maximum
// (a perfect opponent delays the end). Every solving strategy folds
// children through this one type so the policy cannot drift.
type Best struct {
	Has        bool
	Outcome    Outcome
	Remoteness Remoteness
	Utility    []int8
}

// Note folds one resolved child value into the accumulator. Finite
// distances saturate at RemotenessCap: a line longer than the field
// can express must never masquerade as the Draw sentinel.
func (b *Best) Note(child Value) {
	cand := child.Outcome.Flip()
	rem := RemotenessMax
	if child.Outcome != Draw {
		if child.Remoteness >= RemotenessCap {
			rem = RemotenessCap
		} else {
			rem = child.Remoteness + 1
		}
	}
	switch {
	case !b.Has || cand.Beats(b.Outcome):
		b.Has = true
		b.Outcome = cand
		b.Remoteness = rem
		b.Utility = child.Utility
	case cand != b.Outcome:
	case (cand == Win || cand == Tie) && rem < b.Remoteness:
		b.Remoteness = rem
		b.Utility = child.Utility
	case cand == Lose && rem > b.Remoteness:
		b.Remoteness = rem
		b.Utility = child.Utility
	}
}

// Value finalizes the accumulated choice for the given mover. Draw
// results carry the unbounded sentinel and a zero utility vector.
func (b *Best) Value(player, players int) Value {
	if !b.Has || b.Outcome == Draw {
		return Value{
			Outcome:    Draw,
			Remoteness: RemotenessMax,
			Player:     player,
			Utility:    make([]int8, players),
		}
	}
	return Value{
		Outcome:    b.Outcome,
		Remoteness: b.Remoteness,
		Player:     player,
		Utility:    b.Utility,
	}
}
