package game

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor builds a configured game session from a variant string.
// An empty variant selects the game's default.
type Constructor func(variant string) (Game, error)

var registry = struct {
	sync.Mutex
	games map[string]Constructor
}{games: make(map[string]Constructor)}

// Register makes a game available by name. Registering the same name
// twice panics; that is a wiring bug, not a runtime condition.
func Register(name string, ctor Constructor) {
	registry.Lock()
	defer registry.Unlock()
	if _, exists := registry.games[name]; exists {
		panic(fmt.Sprintf("game %q registered twice", name))
	}
	registry.games[name] = ctor
}

// Names returns the registered game names, sorted.
func Names() []string {
	registry.Lock()
	defer registry.Unlock()
	names := make([]string, 0, len(registry.games))
	for name := range registry.games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Make constructs the named game with the given variant. An unknown
// name is a user error and the returned message lists the valid
// offerings.
func Make(name, variant string) (Game, error) {
	registry.Lock()
	ctor, ok := registry.games[name]
	registry.Unlock()
	if !ok {
		return nil, fmt.Errorf(
			"no game named %q; available games: %s",
			name, strings.Join(Names(), ", "))
	}
	return ctor(variant)
}
