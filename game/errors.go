package game

import "fmt"

// VariantError reports a malformed or unsupported variant string. It
// carries the offending input and a protocol hint so the caller can
// self-correct.
type VariantError struct {
	Game    string
	Variant string
	Hint    string
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("game %s: bad variant %q: %s", e.Game, e.Variant, e.Hint)
}

// StateError reports a malformed state string passed to a game's state
// parser, analogous to VariantError for the query path.
type StateError struct {
	Game  string
	State string
	Hint  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("game %s: bad state %q: %s", e.Game, e.State, e.Hint)
}
