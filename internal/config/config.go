package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Backend names accepted in the backend setting.
const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

// Backends lists every valid backend name.
var Backends = []string{BackendAuto, BackendKeyring, BackendFile, BackendSQLite, BackendMemory}

// Config holds the CLI configuration. Every field is a string so it can be
// read and written by key from the command line.
type Config struct {
	Backend        string `json:"backend,omitempty" env:"SKC_BACKEND"`
	AccessGroup    string `json:"access_group,omitempty" env:"SKC_ACCESS_GROUP"`
	Groups         string `json:"groups,omitempty" env:"SKC_GROUPS"` // comma-separated entitled groups
	Codec          string `json:"codec,omitempty" env:"SKC_CODEC"`
	Service        string `json:"service,omitempty" env:"SKC_SERVICE"`
	FilePath       string `json:"file_path,omitempty" env:"SKC_FILE_PATH"`
	FilePassphrase string `json:"file_passphrase,omitempty" env:"SKC_FILE_PASSPHRASE"`
	DBPath         string `json:"db_path,omitempty" env:"SKC_DB_PATH"`
	DefaultOutput  string `json:"default_output,omitempty" env:"SKC_DEFAULT_OUTPUT"`
}

// Load reads the config from the XDG path and applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path, returning defaults if the file doesn't
// exist, then applies SKC_* environment overrides.
func LoadFrom(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// ReadFile reads only the config file at path, without environment
// overrides. Config edits start from this so the environment is never
// written back to disk.
func ReadFile(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the XDG config path.
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes the config to path as indented JSON with 0600 permissions.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// JSON is valid JSON5
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Keys returns the config keys in declaration order.
func Keys() []string {
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, tagName(t.Field(i)))
	}
	return keys
}

func tagName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	return name
}

// field returns the settable field for key.
func (c *Config) field(key string) (reflect.Value, error) {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		if tagName(t.Field(i)) == key {
			return v.Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("unknown config key: %s", key)
}

// Get retrieves a config value by key name.
func (c *Config) Get(key string) (string, error) {
	f, err := c.field(key)
	if err != nil {
		return "", err
	}
	return f.String(), nil
}

// Set sets a config value by key name after validating it.
func (c *Config) Set(key, value string) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}
	if err := validate(key, value); err != nil {
		return err
	}
	f.SetString(value)
	return nil
}

// Unset resets a config value to its zero value.
func (c *Config) Unset(key string) error {
	f, err := c.field(key)
	if err != nil {
		return err
	}
	f.SetString("")
	return nil
}

func validate(key, value string) error {
	switch key {
	case "backend":
		for _, b := range Backends {
			if value == b {
				return nil
			}
		}
		return fmt.Errorf("invalid backend: %s. Valid backends: %s", value, strings.Join(Backends, ", "))
	case "codec":
		if value != "json" && value != "cbor" {
			return fmt.Errorf("invalid codec: %s. Valid codecs: json, cbor", value)
		}
	case "default_output":
		switch value {
		case "json", "plain", "rich", "auto":
		default:
			return fmt.Errorf("invalid output: %s. Valid outputs: json, plain, rich, auto", value)
		}
	}
	return nil
}

// GroupList splits Groups into a list, dropping blanks.
func (c *Config) GroupList() []string {
	var groups []string
	for _, g := range strings.Split(c.Groups, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// ResolvedBackend returns the backend name, defaulting to auto.
func (c *Config) ResolvedBackend() string {
	if c.Backend == "" {
		return BackendAuto
	}
	return c.Backend
}

// ResolvedService returns the keyring service name, defaulting to "skc".
func (c *Config) ResolvedService() string {
	if c.Service == "" {
		return ServiceName
	}
	return c.Service
}

// ResolvedDBPath returns the sqlite database path.
func (c *Config) ResolvedDBPath() string {
	if c.DBPath == "" {
		return filepath.Join(DataDir(), "skc.db")
	}
	return c.DBPath
}
