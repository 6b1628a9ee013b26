package cli

import (
	"errors"
	"fmt"

	"github.com/semmy-space/skc/internal/keychain"
	"github.com/semmy-space/skc/internal/output"
)

// toCLIError maps keychain errors onto exit codes and hints. Errors that are
// already CLIErrors, or that don't come from the keychain, pass through.
func toCLIError(err error) error {
	if err == nil {
		return nil
	}

	var cliErr *output.CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var kerr *keychain.Error
	if !errors.As(err, &kerr) {
		return err
	}

	switch {
	case errors.Is(kerr, keychain.ErrNoValueForKey):
		return output.NewCLIError(output.ExitNotFound, err.Error()).
			WithHint(fmt.Sprintf("Store one with: skc set %s", kerr.Key))

	case errors.Is(kerr, keychain.ErrTypeMismatch):
		return output.NewCLIError(output.ExitTypeMismatch, err.Error()).
			WithHint("Read it without a type with: skc get --any " + kerr.Key)

	case kerr.Status == keychain.StatusMissingEntitlement:
		return output.NewCLIError(output.ExitForbidden, err.Error()).
			WithHint("Add the access group to the groups setting: skc config set groups")

	case kerr.Status == keychain.StatusAuthFailed:
		return output.NewCLIError(output.ExitForbidden, err.Error()).
			WithHint("Check the passphrase (SKC_FILE_PASSPHRASE)")

	case kerr.Status.Transient():
		return output.NewCLIError(output.ExitTempFail, err.Error()).
			WithHint("Unlock the keychain or raise --retries")

	default:
		return output.NewCLIError(output.ExitBackend, err.Error())
	}
}
