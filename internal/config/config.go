// Package config loads server settings from HEXCLASH_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"hexclash/server/internal/combat"
	"hexclash/server/internal/hex"
	"hexclash/server/internal/net/proto"
	"hexclash/server/logging"
)

// Config is the raw process configuration.
type Config struct {
	Addr                string        `env:"HEXCLASH_ADDR"                   envDefault:":8080"`
	GridRadius          int           `env:"HEXCLASH_GRID_RADIUS"            envDefault:"5"`
	Seed                string        `env:"HEXCLASH_SEED"`
	TokenSecret         string        `env:"HEXCLASH_TOKEN_SECRET"`
	TokenTTL            time.Duration `env:"HEXCLASH_TOKEN_TTL"              envDefault:"5m"`
	TurnIdleTimeout     time.Duration `env:"HEXCLASH_TURN_IDLE_TIMEOUT"      envDefault:"60s"`
	StepInterval        time.Duration `env:"HEXCLASH_STEP_INTERVAL"          envDefault:"100ms"`
	ClashMode           string        `env:"HEXCLASH_CLASH_MODE"             envDefault:"strike"`
	Heuristic           string        `env:"HEXCLASH_HEURISTIC"              envDefault:"hex"`
	MaxEffectsPerEntity int           `env:"HEXCLASH_MAX_EFFECTS_PER_ENTITY" envDefault:"16"`
	CatalogPath         string        `env:"HEXCLASH_CATALOG_PATH"`
	LogMinSeverity      string        `env:"HEXCLASH_LOG_MIN_SEVERITY"       envDefault:"info"`
	LogJSONPath         string        `env:"HEXCLASH_LOG_JSON_PATH"`
	WireFormat          string        `env:"HEXCLASH_WIRE_FORMAT"            envDefault:"json"`
	ClientDir           string        `env:"HEXCLASH_CLIENT_DIR"`
	// Bots lists template:team pairs seeded as bot combatants at start.
	Bots             []string `env:"HEXCLASH_BOTS"               envSeparator:","`
	EnablePprofTrace bool     `env:"HEXCLASH_ENABLE_PPROF_TRACE"`
	// OtelEndpoint is an OTLP/HTTP collector URL; empty disables tracing.
	OtelEndpoint string `env:"HEXCLASH_OTEL_ENDPOINT"`
}

// BotSpec is one seeded bot.
type BotSpec struct {
	Template string
	Team     string
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses values instead of the process environment.
func LoadFrom(values map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: values}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the typed accessors cannot interpret.
func (c Config) Validate() error {
	var errs []error
	if c.GridRadius <= 0 {
		errs = append(errs, fmt.Errorf("HEXCLASH_GRID_RADIUS must be positive, got %d", c.GridRadius))
	}
	if _, ok := combat.ParseMode(c.ClashMode); !ok {
		errs = append(errs, fmt.Errorf("HEXCLASH_CLASH_MODE %q is not strike or single", c.ClashMode))
	}
	if _, ok := parseHeuristic(c.Heuristic); !ok {
		errs = append(errs, fmt.Errorf("HEXCLASH_HEURISTIC %q is not hex or euclidean", c.Heuristic))
	}
	if _, ok := logging.ParseSeverity(c.LogMinSeverity); !ok {
		errs = append(errs, fmt.Errorf("HEXCLASH_LOG_MIN_SEVERITY %q is unknown", c.LogMinSeverity))
	}
	if _, ok := proto.ParseFormat(c.WireFormat); !ok {
		errs = append(errs, fmt.Errorf("HEXCLASH_WIRE_FORMAT %q is not json or msgpack", c.WireFormat))
	}
	if _, err := c.BotSpecs(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Mode returns the clash resolution mode.
func (c Config) Mode() combat.Mode {
	mode, _ := combat.ParseMode(c.ClashMode)
	return mode
}

// PathHeuristic returns the pathfinding heuristic.
func (c Config) PathHeuristic() hex.Heuristic {
	h, _ := parseHeuristic(c.Heuristic)
	return h
}

// MinimumSeverity returns the structured log threshold.
func (c Config) MinimumSeverity() logging.Severity {
	sev, _ := logging.ParseSeverity(c.LogMinSeverity)
	return sev
}

// Codec returns the default wire codec.
func (c Config) Codec() proto.Codec {
	format, _ := proto.ParseFormat(c.WireFormat)
	codec, err := proto.CodecFor(format)
	if err != nil {
		return proto.JSON
	}
	return codec
}

// BotSpecs parses the HEXCLASH_BOTS list.
func (c Config) BotSpecs() ([]BotSpec, error) {
	specs := make([]BotSpec, 0, len(c.Bots))
	for _, raw := range c.Bots {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		template, team, ok := strings.Cut(raw, ":")
		if !ok || template == "" || team == "" {
			return nil, fmt.Errorf("HEXCLASH_BOTS entry %q is not template:team", raw)
		}
		specs = append(specs, BotSpec{Template: template, Team: team})
	}
	return specs, nil
}

func parseHeuristic(name string) (hex.Heuristic, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hex":
		return hex.HexHeuristic, true
	case "euclidean":
		return hex.EuclideanHeuristic, true
	}
	return nil, false
}
