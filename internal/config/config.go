// Package config is mapservd's own operational configuration: listen
// address, log level, mapfile path, and the bolt state file. It is
// deliberately separate from internal/mapconfig, which models the WMS
// Map Configuration Tree parsed out of the mapfile itself (spec.md §1
// names the mapfile parser as an out-of-scope collaborator).
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Config is mapservd's process configuration, loaded from a TOML file.
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	LogLevel   string `toml:"log_level"`
	LogJSON    bool   `toml:"log_json"`
	MapPath    string `toml:"map_path"`
	StatePath  string `toml:"state_path"`
	MaxSize    int    `toml:"max_size"` // max WIDTH/HEIGHT, spec.md §4.2
}

// Default returns the configuration mapservd falls back to when no
// config file is given.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		StatePath:  "mapservd.db",
		MaxSize:    2048,
	}
}

// Load reads and parses a TOML config file, filling in defaults for any
// field the file leaves zero.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
