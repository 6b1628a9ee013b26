package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/semmy-space/skc/internal/config"
	"github.com/semmy-space/skc/internal/output"
)

// Globals holds global flags available to all commands
type Globals struct {
	Backend string `help:"Storage backend" enum:"auto,keyring,file,sqlite,memory," default:"" predictor:"backend" env:"SKC_BACKEND"`
	Group   string `help:"Access group to write into" short:"g" env:"SKC_ACCESS_GROUP"`
	Codec   string `help:"Value encoding" enum:"json,cbor," default:"" predictor:"codec" env:"SKC_CODEC"`
	Output  string `help:"Output format" default:"auto" enum:"json,plain,rich,auto" short:"o" env:"SKC_OUTPUT"`
	Verbose bool   `help:"Verbose output" short:"v" env:"SKC_VERBOSE"`
	Retries uint64 `help:"Retries for locked or unavailable keychains" default:"2" env:"SKC_RETRIES"`
	NoInput bool   `help:"Disable interactive prompts (fail instead)" env:"SKC_NO_INPUT"`
}

// ResolvedOutput returns the effective output mode: flag, then the
// default_output setting, then TTY detection.
func (g *Globals) ResolvedOutput(cfg *config.Config) string {
	mode := g.Output
	if mode == "auto" && cfg != nil && cfg.DefaultOutput != "" {
		mode = cfg.DefaultOutput
	}
	if mode != "auto" {
		return mode
	}
	return output.DefaultMode(term.IsTerminal(int(os.Stdout.Fd())))
}

// Apply copies flags that were given onto cfg, so flags win over the
// environment and the config file.
func (g *Globals) Apply(cfg *config.Config) {
	if g.Backend != "" {
		cfg.Backend = g.Backend
	}
	if g.Group != "" {
		cfg.AccessGroup = g.Group
	}
	if g.Codec != "" {
		cfg.Codec = g.Codec
	}
}

// LogLevel is debug with --verbose, warn otherwise.
func (g *Globals) LogLevel() slog.Level {
	if g.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
