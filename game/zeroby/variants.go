package zeroby

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/GamesCrafters/nova/game"
)

const variantPattern = `^[1-9]\d*(?:-[1-9]\d*)+$`

const variantProtocol = "the variant is a dash-separated group of three or " +
	"more positive integers: the number of players, the number of elements " +
	"in the starting set, then the amounts a player may remove on their " +
	"turn. For example, '2-10-1-2' is two players removing one or two from " +
	"ten elements."

// maxPlayers keeps the turn and utility fields inside their one-byte
// record encodings.
const maxPlayers = 127

var variantRe = regexp.MustCompile(variantPattern)

func parseVariant(variant string) (*Session, error) {
	fail := func(hint string) (*Session, error) {
		return nil, &game.VariantError{Game: Name, Variant: variant, Hint: hint}
	}
	if !variantRe.MatchString(variant) {
		return fail(variantProtocol)
	}
	parts := strings.Split(variant, "-")
	if len(parts) < 3 {
		return fail(variantProtocol)
	}
	nums := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return fail("integer out of range: " + p)
		}
		nums[i] = n
	}
	players := nums[0]
	if players > maxPlayers {
		return fail("at most " + strconv.Itoa(maxPlayers) + " players are supported")
	}
	startElems := nums[1]
	by := nums[2:]
	s := &Session{
		players:    int(players),
		startElems: startElems,
		by:         by,
		playerBits: minUbits(players - 1),
		caps:       game.Capabilities(game.Acyclic, game.Cyclic, game.Tiered),
	}
	if s.StateSize() > game.StateBytes {
		return fail("starting set is too large to encode in a state key")
	}
	return s, nil
}
