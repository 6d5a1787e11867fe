package zeroby

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/GamesCrafters/nova/game"
)

const statePattern = `^\d+-\d+$`

const stateProtocol = "the state is two dash-separated non-negative " +
	"integers: the number of elements left in the set, then the player " +
	"whose turn it is. The element count may not exceed the variant's " +
	"starting set, and the turn must be below the variant's player count."

var stateRe = regexp.MustCompile(statePattern)

// ParseState converts a human-readable "elements-turn" string into a
// state of this session, for querying a solved database.
func (s *Session) ParseState(from string) (game.State, error) {
	fail := func(hint string) (game.State, error) {
		return game.State{}, &game.StateError{Game: Name, State: from, Hint: hint}
	}
	if !stateRe.MatchString(from) {
		return fail(stateProtocol)
	}
	parts := strings.Split(from, "-")
	elems, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return fail("element count out of range: " + parts[0])
	}
	turn, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return fail("turn out of range: " + parts[1])
	}
	if elems > s.startElems {
		return fail(fmt.Sprintf("%d elements exceeds the starting set of %d",
			elems, s.startElems))
	}
	if turn >= uint64(s.players) {
		return fail(fmt.Sprintf("turn %d is not below the player count of %d",
			turn, s.players))
	}
	return s.encode(elems, int(turn)), nil
}

// FormatState renders a state back into the "elements-turn" form.
func (s *Session) FormatState(st game.State) string {
	elems, turn := s.decode(st)
	return fmt.Sprintf("%d-%d", elems, turn)
}
