// Package backend selects and opens the storage backend for a keychain.
package backend

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	keyringlib "github.com/99designs/keyring"

	"github.com/semmy-space/skc/internal/backend/file"
	"github.com/semmy-space/skc/internal/backend/keyring"
	"github.com/semmy-space/skc/internal/backend/memory"
	"github.com/semmy-space/skc/internal/backend/sqlite"
	"github.com/semmy-space/skc/internal/config"
	"github.com/semmy-space/skc/internal/keychain"
)

// Opened is a backend together with the function that releases it.
type Opened struct {
	keychain.Backend
	Name  string
	close func() error
}

// Close releases resources held by the backend.
func (o *Opened) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}

// Env gives Open access to the process environment so tests can fake it.
type Env struct {
	Stderr       io.Writer
	PasswordFunc keyringlib.PromptFunc
	KeyringOpen  keyring.Opener
}

func (e Env) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

// Open opens the backend named by cfg. "auto" uses the OS keyring unless
// running under WSL or a headless Linux session, and falls back to the
// encrypted file if the keyring can't be opened.
func Open(cfg *config.Config, e Env) (*Opened, error) {
	groups := cfg.GroupList()

	switch name := cfg.ResolvedBackend(); name {
	case config.BackendMemory:
		return &Opened{Backend: memory.NewStore().View(groups...), Name: name}, nil

	case config.BackendSQLite:
		b, err := sqlite.New(sqlite.Options{Path: cfg.ResolvedDBPath(), Groups: groups})
		if err != nil {
			return nil, err
		}
		return &Opened{Backend: b, Name: name, close: b.Close}, nil

	case config.BackendFile:
		return openFile(cfg, e, groups)

	case config.BackendKeyring:
		return openKeyring(cfg, e, groups)

	case config.BackendAuto:
		if IsWSL() || IsHeadless() {
			warnOnce(e.stderr(), "Detected WSL/headless environment, using encrypted file storage")
			o, err := openFile(cfg, e, groups)
			if err != nil {
				return nil, err
			}
			markWarningsDone()
			return o, nil
		}

		o, err := openKeyring(cfg, e, groups)
		if err != nil {
			warnOnce(e.stderr(), fmt.Sprintf("Keyring unavailable (%v), falling back to encrypted file", err))
			fo, ferr := openFile(cfg, e, groups)
			if ferr != nil {
				return nil, ferr
			}
			markWarningsDone()
			return fo, nil
		}
		return o, nil

	default:
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
}

func openKeyring(cfg *config.Config, e Env, groups []string) (*Opened, error) {
	prompt := e.PasswordFunc
	if prompt == nil {
		prompt = keyringlib.TerminalPrompt
	}

	b, err := keyring.New(keyring.Options{
		Config: keyringlib.Config{
			ServiceName:              cfg.ResolvedService(),
			KeychainTrustApplication: true, // macOS: don't prompt every access
			FileDir:                  filepath.Join(config.DataDir(), "keyring"),
			FilePasswordFunc:         prompt,
		},
		Groups: groups,
		Search: searchGroups(cfg),
		Opener: e.KeyringOpen,
	})
	if err != nil {
		return nil, err
	}
	return &Opened{Backend: b, Name: config.BackendKeyring}, nil
}

// searchGroups names the configured access group so an unrestricted keyring
// also reads and clears items written into it by earlier runs.
func searchGroups(cfg *config.Config) []string {
	if cfg.AccessGroup == "" {
		return nil
	}
	return []string{cfg.AccessGroup}
}

func openFile(cfg *config.Config, e Env, groups []string) (*Opened, error) {
	passphrase := cfg.FilePassphrase
	if passphrase == "" {
		warnOnce(e.stderr(), "WARNING: Using machine-specific encryption key. For better security, set a passphrase via SKC_FILE_PASSPHRASE.")
		passphrase = file.MachinePassphrase()
	}

	b, err := file.New(file.Options{
		Path:       cfg.FilePath,
		Passphrase: passphrase,
		Groups:     groups,
	})
	if err != nil {
		return nil, err
	}
	return &Opened{Backend: b, Name: config.BackendFile}, nil
}

// IsWSL returns true if running under Windows Subsystem for Linux.
func IsWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}

	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// IsHeadless returns true if running in a headless environment (no display server).
// Only applicable on Linux; macOS and Windows are assumed to have GUI.
func IsHeadless() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}
