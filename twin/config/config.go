// Package config loads the process-wide configuration for the scheduler
// service (spec.md §6): watcher auto-start, the latency matrix path, the
// HTTP bind address, and the CVaR policy's default parameters.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/dtwin/dtwin/twin"
)

// CVaRDefaults holds the alpha/risk_weight/sample-count triple that
// engine.New passes to the engine's RiskAwareCvarPolicy.
type CVaRDefaults struct {
	Alpha      float64 `toml:"alpha"`
	RiskWeight float64 `toml:"risk_weight"`
	Samples    int     `toml:"samples"`
}

// Config is the top-level process configuration, loaded from a TOML file.
type Config struct {
	AutoStartWatchers bool         `toml:"auto_start_watchers"`
	LatencyMatrixPath string       `toml:"latency_matrix_path"`
	HTTPBindAddr      string       `toml:"http_bind_addr"`
	CVaR              CVaRDefaults `toml:"cvar"`
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		AutoStartWatchers: true,
		LatencyMatrixPath: "",
		HTTPBindAddr:      ":8080",
		CVaR: CVaRDefaults{
			Alpha:      0.95,
			RiskWeight: 0.6,
			Samples:    16,
		},
	}
}

// Load reads a TOML config file at path, falling back to Default() values
// for any field the file omits. A missing file is not an error: it yields
// Default() with a logged info message, matching
// original_source/app.py's latency-matrix-missing-is-single-cluster-mode
// leniency applied to config loading generally.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logrus.WithField("path", path).Info("config file not found, using defaults")
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %v: %w", path, err, twin.ErrConfigError)
	}
	return cfg, nil
}
