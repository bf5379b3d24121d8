package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// BinaryDirs overrides the search path for the required external
	// binaries. Empty means the built-in sbin-first default order.
	BinaryDirs []string `yaml:"binary_dirs,omitempty"`

	// InventoryDB is the path of the device inventory database.
	InventoryDB string `yaml:"inventory_db,omitempty"`

	// UdevDataDir overrides where udev database records are read from.
	// Empty means the running daemon's default (/run/udev/data).
	UdevDataDir string `yaml:"udev_data_dir,omitempty"`
}

// defaultConfig provides baseline settings
var defaultConfig = Config{
	InventoryDB: "/var/lib/poolgod/inventory.db",
}

func Load(path string) (*Config, error) {
	if path == "" {
		// Try default locations
		candidates := []string{
			"/etc/poolgod/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/poolgod/config.yaml"),
			"config.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	var cfg Config
	if path == "" {
		// No config file found - use defaults
		cfg = defaultConfig
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			cfg = defaultConfig
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		}
	}

	if cfg.InventoryDB == "" {
		cfg.InventoryDB = defaultConfig.InventoryDB
	}

	return &cfg, nil
}
