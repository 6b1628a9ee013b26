package cli

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/semmy-space/skc/internal/config"
	"github.com/semmy-space/skc/internal/output"
)

// secretKeys are masked by config list
var secretKeys = map[string]bool{
	"file_passphrase": true,
}

// ConfigGetCmd implements config get command
type ConfigGetCmd struct {
	Key string `arg:"" help:"Config key to get (e.g., backend, groups)" predictor:"config_key"`
}

// Run executes the get command. It reports the effective value, including
// environment overrides.
func (cmd *ConfigGetCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	value, err := cfg.Get(cmd.Key)
	if err != nil {
		return output.Errorf(output.ExitUsage, "Unknown config key: %s", cmd.Key).
			WithHint("Run 'skc config list' to see valid keys")
	}
	return fp.Formatter.Print(value)
}

// ConfigSetCmd implements config set command
type ConfigSetCmd struct {
	Key   string `arg:"" help:"Config key to set" predictor:"config_key"`
	Value string `arg:"" help:"Value to set"`
}

// Run executes the set command
func (cmd *ConfigSetCmd) Run(ctx *kong.Context) error {
	err := editConfig(func(cfg *config.Config) error {
		if _, err := cfg.Get(cmd.Key); err != nil {
			return output.Errorf(output.ExitUsage, "Unknown config key: %s", cmd.Key)
		}
		if err := cfg.Set(cmd.Key, cmd.Value); err != nil {
			return output.NewCLIError(output.ExitUsage, err.Error())
		}
		return nil
	})
	if err != nil {
		return err
	}

	if secretKeys[cmd.Key] {
		fmt.Fprintf(ctx.Stderr, "Note: %s is stored in plain text in %s. Prefer the SKC_FILE_PASSPHRASE environment variable.\n", cmd.Key, config.ConfigPath())
		fmt.Fprintf(ctx.Stderr, "Set %s\n", cmd.Key)
		return nil
	}
	fmt.Fprintf(ctx.Stderr, "Set %s = %s\n", cmd.Key, cmd.Value)
	return nil
}

// ConfigUnsetCmd implements config unset command
type ConfigUnsetCmd struct {
	Key string `arg:"" help:"Config key to remove" predictor:"config_key"`
}

// Run executes the unset command
func (cmd *ConfigUnsetCmd) Run(ctx *kong.Context) error {
	err := editConfig(func(cfg *config.Config) error {
		if err := cfg.Unset(cmd.Key); err != nil {
			return output.Errorf(output.ExitUsage, "Unknown config key: %s", cmd.Key)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Stderr, "Unset %s\n", cmd.Key)
	return nil
}

// editConfig applies fn to the config file alone and saves it, so values
// that come from the environment or flags are never persisted.
func editConfig(fn func(cfg *config.Config) error) error {
	cfg, err := config.ReadFile(config.ConfigPath())
	if err != nil {
		return output.NewCLIError(output.ExitConfigError, err.Error())
	}
	if err := fn(cfg); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return output.Errorf(output.ExitConfigError, "Failed to save config: %v", err)
	}
	return nil
}

// ConfigItem is one row of config list
type ConfigItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ConfigListConfigCmd implements config list command
type ConfigListConfigCmd struct{}

// Run executes the list command
func (cmd *ConfigListConfigCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	cols := []output.Column{
		{Name: "Key", Key: "Key"},
		{Name: "Value", Key: "Value"},
	}
	return fp.Formatter.PrintList(configItems(cfg), cols)
}

func configItems(cfg *config.Config) []ConfigItem {
	keys := config.Keys()
	items := make([]ConfigItem, 0, len(keys))
	for _, key := range keys {
		value, _ := cfg.Get(key)
		if secretKeys[key] {
			value = output.MaskSecret(value)
		}
		items = append(items, ConfigItem{Key: key, Value: value})
	}
	return items
}

// ConfigPathCmd implements config path command
type ConfigPathCmd struct{}

// Run executes the path command
func (cmd *ConfigPathCmd) Run(ctx *kong.Context) error {
	path := config.ConfigPath()
	fmt.Fprintln(ctx.Stdout, path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(ctx.Stderr, "(file does not exist yet - will be created on first write)")
	}
	return nil
}
