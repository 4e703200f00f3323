// Package config loads the storage engine's JSONC configuration file
// using hujson.Standardize followed by encoding/json.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config holds the settings cmd/heapctl needs to open a storage manager.
type Config struct {
	StoragePath string `json:"storage_path"`
	Compression string `json:"compression"`
}

// DefaultConfig returns the engine's built-in defaults.
func DefaultConfig() Config {
	return Config{
		StoragePath: "./data",
		Compression: "zstd",
	}
}

// Load reads a JSONC config file at path, falling back to DefaultConfig
// values for any field the file leaves unset. A missing file is not an
// error: it just means defaults apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s is not valid JSONC: %w", path, err)
	}

	var overlay Config
	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return Config{}, fmt.Errorf("config: %s is not valid JSON after standardization: %w", path, err)
	}

	if overlay.StoragePath != "" {
		cfg.StoragePath = overlay.StoragePath
	}
	if overlay.Compression != "" {
		cfg.Compression = overlay.Compression
	}
	return cfg, nil
}
