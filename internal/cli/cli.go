package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/skc/internal/backend"
	"github.com/semmy-space/skc/internal/config"
	"github.com/semmy-space/skc/internal/keychain"
	"github.com/semmy-space/skc/internal/output"
)

// FormatterProvider wraps the formatter interface for Kong binding
type FormatterProvider struct {
	Formatter output.Formatter
}

// Session is an open keychain plus the backend behind it. It is created on
// first use so config commands work without a reachable backend.
type Session struct {
	Keychain *keychain.Keychain
	Backend  *backend.Opened
	Retrier  *Retrier
}

// CLI is the root command structure
type CLI struct {
	Globals

	Get      GetCmd      `cmd:"" help:"Read the value stored under a key"`
	Set      SetCmd      `cmd:"" help:"Store a value under a key"`
	Delete   DeleteCmd   `cmd:"" aliases:"rm" help:"Remove the value stored under a key"`
	Token    TokenCmd    `cmd:"" help:"OAuth2 token commands"`
	Backends BackendsCmd `cmd:"" help:"List storage backends"`
	Config   ConfigCmd   `cmd:"" help:"Configuration commands"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`

	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`

	// Stdin defaults to os.Stdin; output goes to the kong writers.
	Stdin io.Reader `kong:"-"`

	// OpenEnv is passed to backend.Open; tests use it to fake the keyring.
	OpenEnv backend.Env `kong:"-"`

	stdout, stderr io.Writer
	formatter      output.Formatter
	session        *Session
}

// AfterApply runs once flags are parsed into the struct and before the
// command executes. It loads config, applies flag overrides, creates the
// formatter and logger, and binds dependencies.
func (c *CLI) AfterApply(ctx *kong.Context) error {
	c.defaults(ctx)

	cfg, err := config.Load()
	if err != nil {
		return output.NewCLIError(output.ExitConfigError, err.Error()).
			WithHint("Check " + config.ConfigPath())
	}
	c.Globals.Apply(cfg)

	c.formatter = output.NewWriters(c.ResolvedOutput(cfg), c.stdout, c.stderr)
	logger := slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: c.LogLevel()}))

	ctx.Bind(cfg)
	ctx.Bind(&FormatterProvider{Formatter: c.formatter})
	ctx.Bind(&c.Globals)
	ctx.Bind(logger)
	ctx.BindTo(c.Stdin, (*io.Reader)(nil))
	return ctx.BindToProvider(func() (*Session, error) {
		return c.open(cfg, logger)
	})
}

func (c *CLI) defaults(ctx *kong.Context) {
	c.stdout, c.stderr = ctx.Stdout, ctx.Stderr
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.OpenEnv.Stderr == nil {
		c.OpenEnv.Stderr = c.stderr
	}
}

func (c *CLI) open(cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if c.session != nil {
		return c.session, nil
	}

	codec, err := keychain.CodecByName(cfg.Codec)
	if err != nil {
		return nil, output.NewCLIError(output.ExitConfigError, err.Error())
	}

	opened, err := backend.Open(cfg, c.OpenEnv)
	if err != nil {
		return nil, output.Errorf(output.ExitBackend, "failed to open %s backend: %v", cfg.ResolvedBackend(), err).
			WithHint("Pick another backend with --backend or 'skc config set backend'")
	}
	logger.Debug("backend opened", "backend", opened.Name, "codec", codec.Name(), "access_group", cfg.AccessGroup)

	c.session = &Session{
		Keychain: keychain.New(opened,
			keychain.WithAccessGroup(cfg.AccessGroup),
			keychain.WithCodec(codec),
			keychain.WithLogger(logger),
		),
		Backend: opened,
		Retrier: NewRetrier(c.Retries, logger),
	}
	return c.session, nil
}

// Formatter returns the formatter chosen in AfterApply, or a plain one on
// stdout/stderr if parsing failed before it ran.
func (c *CLI) Formatter() output.Formatter {
	if c.formatter == nil {
		return output.New(output.ModePlain)
	}
	return c.formatter
}

// Close releases the backend opened for the command, if any.
func (c *CLI) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Backend.Close()
}

// ConfigCmd holds configuration subcommands
type ConfigCmd struct {
	Get   ConfigGetCmd        `cmd:"" help:"Get a configuration value"`
	Set   ConfigSetCmd        `cmd:"" help:"Set a configuration value"`
	Unset ConfigUnsetCmd      `cmd:"" help:"Remove a configuration value"`
	List  ConfigListConfigCmd `cmd:"" name:"list" help:"List all configuration values"`
	Path  ConfigPathCmd       `cmd:"" help:"Show config file path"`
}

// VersionCmd shows version information
type VersionCmd struct{}

func (cmd *VersionCmd) Run(ctx *kong.Context) error {
	fmt.Fprintf(ctx.Stdout, "skc version %s\n", ctx.Model.Vars()["version"])
	return nil
}
