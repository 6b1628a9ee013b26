package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"golang.org/x/term"

	"github.com/semmy-space/skc/internal/keychain"
	"github.com/semmy-space/skc/internal/output"
)

// GetCmd implements get command
type GetCmd struct {
	Key      string `arg:"" help:"Key to read"`
	Any      bool   `help:"Decode any stored value instead of requiring a string"`
	Optional bool   `help:"Print nothing and exit 0 when the key has no value"`
}

// Run executes the get command
func (cmd *GetCmd) Run(s *Session, fp *FormatterProvider) error {
	var (
		v   any
		ok  = true
		err error
	)

	switch {
	case cmd.Optional && cmd.Any:
		v, ok, err = optional[any](s, cmd.Key)
	case cmd.Optional:
		v, ok, err = optional[string](s, cmd.Key)
	case cmd.Any:
		v, err = retryValue(s.Retrier, func() (any, error) { return keychain.Value[any](s.Keychain, cmd.Key) })
	default:
		v, err = retryValue(s.Retrier, func() (string, error) { return keychain.Value[string](s.Keychain, cmd.Key) })
	}
	if err != nil {
		return toCLIError(err)
	}
	if !ok {
		return nil
	}

	return fp.Formatter.Print(v)
}

func optional[T any](s *Session, key string) (any, bool, error) {
	v, ok, err := keychain.Optional[T](s.Keychain, key)
	return v, ok, err
}

// SetCmd implements set command
type SetCmd struct {
	Key   string `arg:"" help:"Key to write"`
	Value string `arg:"" optional:"" help:"Value to store (prompted or read from stdin when omitted)"`
	JSON  bool   `name:"json" help:"Parse the value as JSON5 and store the structured result"`
}

// Run executes the set command
func (cmd *SetCmd) Run(ctx *kong.Context, s *Session, g *Globals, stdin io.Reader, logger *slog.Logger) error {
	raw := cmd.Value
	if !positionalGiven(ctx, "value") {
		var err error
		raw, err = readValue(stdin, ctx.Stderr, g.NoInput, cmd.Key)
		if err != nil {
			return err
		}
	}

	var value any = raw
	if cmd.JSON {
		var parsed any
		if err := json5.Unmarshal([]byte(raw), &parsed); err != nil {
			return output.Errorf(output.ExitUsage, "invalid JSON5 value: %v", err)
		}
		if parsed == nil {
			return output.NewCLIError(output.ExitUsage, "null can't be stored").
				WithHint("Use 'skc delete' to remove a value")
		}
		value = parsed
	}

	if err := s.Retrier.Do(func() error { return s.Keychain.Set(cmd.Key, value) }); err != nil {
		return toCLIError(err)
	}
	logger.Debug("stored value", "key", cmd.Key, "backend", s.Backend.Name)
	return nil
}

// positionalGiven reports whether the named positional argument appeared on
// the command line, so an explicit "" is told apart from an omitted value.
func positionalGiven(ctx *kong.Context, name string) bool {
	for _, p := range ctx.Path {
		if p.Positional != nil && p.Positional.Name == name {
			return true
		}
	}
	return false
}

// readValue reads a value without echo from a terminal, or the whole of a
// piped stdin with one trailing newline removed.
func readValue(stdin io.Reader, stderr io.Writer, noInput bool, key string) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if noInput {
			return "", output.NewCLIError(output.ExitUsage, "value required").
				WithHint("Pass the value as an argument or pipe it on stdin")
		}
		fmt.Fprintf(stderr, "Value for %s: ", key)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read value: %w", err)
		}
		return string(b), nil
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read value: %w", err)
	}
	value := strings.TrimSuffix(strings.TrimSuffix(string(b), "\n"), "\r")
	if value == "" {
		return "", output.NewCLIError(output.ExitUsage, "value required").
			WithHint("Pass the value as an argument or pipe it on stdin")
	}
	return value, nil
}

// DeleteCmd implements delete command
type DeleteCmd struct {
	Key string `arg:"" help:"Key to remove"`
}

// Run executes the delete command. Deleting a missing key is not an error.
func (cmd *DeleteCmd) Run(ctx *kong.Context, s *Session) error {
	s.Keychain.Delete(cmd.Key)
	fmt.Fprintf(ctx.Stderr, "Deleted %s\n", cmd.Key)
	return nil
}
