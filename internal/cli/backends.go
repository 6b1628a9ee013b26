package cli

import (
	"strings"

	"github.com/semmy-space/skc/internal/backend"
	"github.com/semmy-space/skc/internal/backend/file"
	"github.com/semmy-space/skc/internal/backend/keyring"
	"github.com/semmy-space/skc/internal/config"
	"github.com/semmy-space/skc/internal/output"
)

// BackendInfo is one row of the backends listing
type BackendInfo struct {
	Name        string `json:"name"`
	Selected    bool   `json:"selected"`
	Description string `json:"description"`
}

// BackendsCmd implements backends command
type BackendsCmd struct{}

// Run executes the backends command
func (cmd *BackendsCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	return fp.Formatter.PrintList(listBackends(cfg, keyring.AvailableBackends()), backendColumns)
}

var backendColumns = []output.Column{
	{Name: "NAME", Key: "Name"},
	{Name: "SELECTED", Key: "Selected"},
	{Name: "DESCRIPTION", Key: "Description", Width: 60},
}

func listBackends(cfg *config.Config, keyrings []string) []BackendInfo {
	selected := cfg.ResolvedBackend()

	keyringDesc := "OS keyring (none available)"
	if len(keyrings) > 0 {
		keyringDesc = "OS keyring: " + strings.Join(keyrings, ", ")
	}

	auto := "keyring, falling back to file"
	if backend.IsWSL() || backend.IsHeadless() {
		auto = "file (WSL/headless session)"
	}

	descriptions := map[string]string{
		config.BackendAuto:    "Detect: " + auto,
		config.BackendKeyring: keyringDesc,
		config.BackendFile:    "Encrypted file at " + fileLocation(cfg),
		config.BackendSQLite:  "SQLite database at " + cfg.ResolvedDBPath(),
		config.BackendMemory:  "In-process only, discarded on exit",
	}

	infos := make([]BackendInfo, 0, len(config.Backends))
	for _, name := range config.Backends {
		infos = append(infos, BackendInfo{
			Name:        name,
			Selected:    name == selected,
			Description: descriptions[name],
		})
	}
	return infos
}

func fileLocation(cfg *config.Config) string {
	if cfg.FilePath != "" {
		return cfg.FilePath
	}
	return file.DefaultPath()
}
