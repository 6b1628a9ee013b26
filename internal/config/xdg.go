package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// ServiceName is the default keyring service and directory name.
const ServiceName = "skc"

// ConfigDir returns the XDG-compliant config directory for skc
// Typically ~/.config/skc/ on Linux
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, ServiceName)
}

// ConfigPath returns the full path to the config file
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json5")
}

// DataDir returns the XDG-compliant data directory for skc
// Typically ~/.local/share/skc/ on Linux (credentials file, sqlite db)
func DataDir() string {
	return filepath.Join(xdg.DataHome, ServiceName)
}

// StateDir returns the XDG-compliant state directory for skc
// Typically ~/.local/state/skc/ on Linux (lock files, warning markers)
func StateDir() string {
	return filepath.Join(xdg.StateHome, ServiceName)
}
