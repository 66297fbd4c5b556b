package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"daorewards/storage"
)

// Config is the rewardsd configuration file.
type Config struct {
	DataDir      string    `toml:"DataDir"`
	Backend      string    `toml:"Backend"`
	NativeDenom  string    `toml:"NativeDenom"`
	Owner        string    `toml:"Owner"`
	AllowMigrate bool      `toml:"AllowMigrate"`
	Logging      Logging   `toml:"logging"`
	Metrics      Metrics   `toml:"metrics"`
	Telemetry    Telemetry `toml:"telemetry"`
}

// Default returns the configuration written for a fresh install.
func Default() *Config {
	return &Config{
		DataDir:     "./rewards-data",
		Backend:     storage.BackendLevelDB,
		NativeDenom: "udao",
		Owner:       "owner",
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Metrics: Metrics{Namespace: "daorewards", RequestsPerMinute: 120, Burst: 10},
		Telemetry: Telemetry{
			ServiceName: "rewardsd",
			Endpoint:    "localhost:4318",
		},
	}
}

// Load loads the configuration from the given path. A missing file is created
// with the defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.NativeDenom = strings.TrimSpace(c.NativeDenom)
	c.Owner = strings.TrimSpace(c.Owner)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Backend == "" {
		c.Backend = storage.BackendLevelDB
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
