package config

import "github.com/namsral/flag"

type Config struct {
	Game     string
	Variant  string
	State    string
	Backend  string
	DBPath   string
	Mode     string
	Workers  int
	Truncate bool
	Debug    bool
}

func (c *Config) Load(args []string) error {
	fs := flag.NewFlagSet("nova", flag.ContinueOnError)
	fs.StringVar(&c.Game, "game", "zero-by", "the game to solve or query")
	fs.StringVar(&c.Variant, "variant", "", "game variant string; empty selects the game's default")
	fs.StringVar(&c.State, "state", "", "state to query after solving; empty queries the start state")
	fs.StringVar(&c.Backend, "backend", "volatile", "storage backend: volatile, bplus, or lsm")
	fs.StringVar(&c.DBPath, "db-path", "./data/solutions", "path for the solution database (ignored by the volatile backend)")
	fs.StringVar(&c.Mode, "mode", "read-write", "database mode: read-only, write-only, read-write, or none")
	fs.IntVar(&c.Workers, "workers", 0, "retrograde worker count; 0 uses one per CPU")
	fs.BoolVar(&c.Truncate, "forget", false, "discard any existing solution database before solving")
	fs.BoolVar(&c.Debug, "debug", false, "enable debug logging")
	err := fs.Parse(args)
	return err
}
