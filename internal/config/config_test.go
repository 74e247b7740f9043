package config

import (
	"strings"
	"testing"
	"time"

	"hexclash/server/internal/combat"
	"hexclash/server/internal/net/proto"
	"hexclash/server/logging"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.GridRadius != 5 || cfg.MaxEffectsPerEntity != 16 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TurnIdleTimeout != time.Minute || cfg.TokenTTL != 5*time.Minute {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.Mode() != combat.ModeStrike || cfg.Codec().Format() != proto.FormatJSON {
		t.Fatalf("unexpected typed defaults")
	}
	if cfg.MinimumSeverity() != logging.SeverityInfo {
		t.Fatalf("expected info severity, got %v", cfg.MinimumSeverity())
	}
	if cfg.PathHeuristic() == nil {
		t.Fatalf("expected a default heuristic")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"HEXCLASH_ADDR":              ":9000",
		"HEXCLASH_GRID_RADIUS":       "7",
		"HEXCLASH_CLASH_MODE":        "single",
		"HEXCLASH_HEURISTIC":         "euclidean",
		"HEXCLASH_WIRE_FORMAT":       "msgpack",
		"HEXCLASH_LOG_MIN_SEVERITY":  "warn",
		"HEXCLASH_TURN_IDLE_TIMEOUT": "15s",
		"HEXCLASH_BOTS":              "brute:red, mage:blue",
	})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.GridRadius != 7 || cfg.TurnIdleTimeout != 15*time.Second {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.Mode() != combat.ModeSingle || cfg.Codec().Format() != proto.FormatMsgpack || cfg.MinimumSeverity() != logging.SeverityWarn {
		t.Fatalf("unexpected typed overrides")
	}
	bots, err := cfg.BotSpecs()
	if err != nil {
		t.Fatalf("BotSpecs: %v", err)
	}
	if len(bots) != 2 || bots[0] != (BotSpec{Template: "brute", Team: "red"}) || bots[1] != (BotSpec{Template: "mage", Team: "blue"}) {
		t.Fatalf("unexpected bots: %+v", bots)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"radius":    {"HEXCLASH_GRID_RADIUS": "0"},
		"mode":      {"HEXCLASH_CLASH_MODE": "chaos"},
		"heuristic": {"HEXCLASH_HEURISTIC": "manhattan"},
		"format":    {"HEXCLASH_WIRE_FORMAT": "xml"},
		"severity":  {"HEXCLASH_LOG_MIN_SEVERITY": "loud"},
		"bots":      {"HEXCLASH_BOTS": "brute"},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFrom(values); err == nil {
				t.Fatalf("expected an error for %v", values)
			}
		})
	}
}

func TestLoadWrapsParseErrors(t *testing.T) {
	t.Setenv("HEXCLASH_GRID_RADIUS", "not-an-int")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
