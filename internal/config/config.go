// Package config loads the valuation.toml settings file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "valuation.toml"

// Data sources.
const (
	SourceCSV       = "csv"
	SourceShapefile = "shapefile"
	SourceOracle    = "oracle"
)

// Config is the full settings file.
type Config struct {
	Evaluation Evaluation `toml:"evaluation"`
	Data       Data       `toml:"data"`
	Cache      Cache      `toml:"cache"`
	Zoning     Zoning     `toml:"zoning"`
	Server     Server     `toml:"server"`
	Log        Log        `toml:"log"`
}

// Evaluation holds the default evaluation parameters.
type Evaluation struct {
	MaxDistanceKm   float64 `toml:"max_distance_km"`
	AreaToleranceM2 float64 `toml:"area_tolerance_m2"`
	Power           float64 `toml:"power"`
}

// Data selects where transactions come from.
type Data struct {
	Source string `toml:"source"`
	Path   string `toml:"path"`
	Target string `toml:"target"`
}

// Cache configures the evaluation cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Zoning lists polygon layers used to tag records with a district.
type Zoning struct {
	Layers     []string `toml:"layers"`
	Projection string   `toml:"projection"`
}

// Server configures the HTTP API.
type Server struct {
	Address string `toml:"address"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Evaluation: Evaluation{
			MaxDistanceKm:   50,
			AreaToleranceM2: 1000,
			Power:           2,
		},
		Data: Data{
			Source: SourceCSV,
		},
		Cache: Cache{
			Enabled: true,
			Path:    filepath.Join(".valuation", "cache.db"),
		},
		Zoning: Zoning{
			Projection: "geographic",
		},
		Server: Server{
			Address: ":8080",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Write saves cfg to path as TOML.
func Write(path string, cfg Config) error {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Encode writes cfg as TOML to w.
func Encode(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// Validate checks value ranges and the data source name.
func (c Config) Validate() error {
	e := c.Evaluation
	if !(e.MaxDistanceKm >= 0) {
		return fmt.Errorf("evaluation.max_distance_km must be >= 0, got %v", e.MaxDistanceKm)
	}
	if !(e.AreaToleranceM2 >= 0) {
		return fmt.Errorf("evaluation.area_tolerance_m2 must be >= 0, got %v", e.AreaToleranceM2)
	}
	if !(e.Power > 0) {
		return fmt.Errorf("evaluation.power must be > 0, got %v", e.Power)
	}

	switch strings.ToLower(c.Data.Source) {
	case SourceCSV, SourceShapefile, SourceOracle:
	default:
		return fmt.Errorf("data.source must be csv, shapefile or oracle, got %q", c.Data.Source)
	}
	return nil
}
