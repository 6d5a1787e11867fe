package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GamesCrafters/nova/config"
	"github.com/GamesCrafters/nova/db"
	"github.com/GamesCrafters/nova/db/bplus"
	"github.com/GamesCrafters/nova/db/lsm"
	"github.com/GamesCrafters/nova/db/volatile"
	"github.com/GamesCrafters/nova/game"
	"github.com/GamesCrafters/nova/game/zeroby"
	"github.com/GamesCrafters/nova/solver"
)

func registerGames() {
	game.Register(zeroby.Name, zeroby.New)
}

func parseMode(s string) (db.Mode, error) {
	switch s {
	case "none":
		return db.ModeNone, nil
	case "read-only":
		return db.ModeRead, nil
	case "write-only":
		return db.ModeWrite, nil
	case "read-write":
		return db.ModeReadWrite, nil
	}
	return 0, fmt.Errorf("unknown mode %q; use read-only, write-only, read-write, or none", s)
}

func openBackend(cfg *config.Config) (db.Database, error) {
	mode, err := parseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	opts := db.Options{Path: cfg.DBPath, Mode: mode, Truncate: cfg.Truncate}
	switch cfg.Backend {
	case "volatile":
		opts.Mode = db.ModeNone
		return volatile.Open(opts)
	case "bplus":
		return bplus.Open(opts)
	case "lsm":
		return lsm.Open(opts)
	}
	return nil, fmt.Errorf("unknown backend %q; use volatile, bplus, or lsm", cfg.Backend)
}

// stateParser is what a game must additionally implement for its
// states to be queryable from the command line.
type stateParser interface {
	ParseState(string) (game.State, error)
	FormatState(game.State) string
}

func realMain() int {
	cfg := &config.Config{}
	if err := cfg.Load(os.Args[1:]); err != nil {
		log.Err(err).Msg("loading configuration")
		return 1
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	registerGames()
	g, err := game.Make(cfg.Game, cfg.Variant)
	if err != nil {
		log.Err(err).Msg("configuring game")
		return 1
	}

	d, err := openBackend(cfg)
	if err != nil {
		log.Err(err).Msg("opening storage backend")
		return 1
	}
	defer d.Close()
	store := solver.NewStore(d, g.StateSize())

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("got quit signal, stopping between tiers...")
		cancel()
	}()

	if cfg.Mode != "read-only" {
		if err := solver.Solve(ctx, g, store, solver.Options{Workers: cfg.Workers}); err != nil {
			log.Err(err).Msg("solve failed")
			return 1
		}
	}

	if cfg.Mode == "write-only" {
		return 0
	}
	target := g.Start()
	if cfg.State != "" {
		p, ok := g.(stateParser)
		if !ok {
			log.Error().Str("game", g.Name()).Msg("game does not support state queries")
			return 1
		}
		target, err = p.ParseState(cfg.State)
		if err != nil {
			log.Err(err).Msg("parsing query state")
			return 1
		}
	}
	v, err := store.Get(target)
	if err != nil {
		log.Err(err).Msg("querying solution")
		return 1
	}
	if v == nil {
		fmt.Printf("%s: unsolved\n", describe(g, target))
		return 0
	}
	fmt.Printf("%s: %s (player %d to move)\n", describe(g, target), v, v.Player)
	return 0
}

func describe(g game.Game, s game.State) string {
	if p, ok := g.(stateParser); ok {
		return p.FormatState(s)
	}
	return s.String()
}

func main() {
	os.Exit(realMain())
}
