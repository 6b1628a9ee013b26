package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/skc/internal/cli"
	"github.com/semmy-space/skc/internal/output"
)

var (
	version = "dev"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cliInstance := &cli.CLI{}
	parser := kong.Must(cliInstance,
		kong.Name("skc"),
		kong.Description("Store typed values in the system keychain"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	// Handles COMP_LINE requests from the shell and exits
	kongplete.Complete(parser, cli.Predictors()...)

	ctx, err := parser.Parse(args)
	if err != nil {
		return output.Report(cliInstance.Formatter(), usageError(err))
	}

	err = ctx.Run()
	cliInstance.Close()
	if err != nil {
		return output.Report(cliInstance.Formatter(), err)
	}
	return output.ExitOK
}

// usageError keeps CLIErrors raised by hooks and maps kong parse errors to
// the usage exit code.
func usageError(err error) error {
	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}
	return output.NewCLIError(output.ExitUsage, err.Error()).
		WithHint("Run 'skc --help' for usage")
}
