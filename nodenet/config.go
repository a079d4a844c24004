package nodenet

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// RuntimeConfig holds the engine-wide tunables for a Runtime, loaded from
// an INI file: one section per concern, mapped via struct tags, then a
// small amount of manual re-parsing and explicit validation.
type RuntimeConfig struct {
	Engine EngineConfig
	Server ServerConfig
}

// EngineConfig holds step-engine and gate-function defaults.
type EngineConfig struct {
	DefaultLockTTL       int     `ini:"default_lock_ttl"`
	GateMinimum          float64 `ini:"gate_minimum"`
	GateMaximum          float64 `ini:"gate_maximum"`
	GateThreshold        float64 `ini:"gate_threshold"`
	GateAmplification    float64 `ini:"gate_amplification"`
	ActivatorOnThreshold float64 `ini:"activator_on_threshold"`
	ResourcePath         string  `ini:"resource_path"`
}

// ServerConfig holds the CLI runner host defaults.
type ServerConfig struct {
	Host string `ini:"host"`
	Port int    `ini:"port"`
}

// DefaultRuntimeConfig returns the built-in defaults: the global gate
// parameter range, a 100-step lock timeout, and localhost:6543 for the
// runner host.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Engine: EngineConfig{
			DefaultLockTTL:       100,
			GateMinimum:          -1,
			GateMaximum:          1,
			GateThreshold:        0,
			GateAmplification:    1,
			ActivatorOnThreshold: 0,
			ResourcePath:         ".",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 6543,
		},
	}
}

// LoadConfig loads a RuntimeConfig from an INI file, falling back to
// DefaultRuntimeConfig's values for anything the file omits.
func LoadConfig(filePath string) (*RuntimeConfig, error) {
	config := DefaultRuntimeConfig()

	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %q: %w", filePath, err)
	}

	if err := cfg.Section("Engine").MapTo(&config.Engine); err != nil {
		return nil, fmt.Errorf("failed to map [Engine] section: %w", err)
	}
	if err := cfg.Section("Server").MapTo(&config.Server); err != nil {
		return nil, fmt.Errorf("failed to map [Server] section: %w", err)
	}

	// Manual re-parse of fields that sometimes survive MapTo with a zero
	// value when the ini file's value carries trailing comment markers.
	engineSection := cfg.Section("Engine")
	if key, err := engineSection.GetKey("default_lock_ttl"); err == nil {
		if v, convErr := key.Int(); convErr == nil && v != 0 {
			config.Engine.DefaultLockTTL = v
		}
	}
	serverSection := cfg.Section("Server")
	config.Server.Host = cleanIniString(config.Server.Host)
	if key, err := serverSection.GetKey("port"); err == nil {
		if v, convErr := key.Int(); convErr == nil && v != 0 {
			config.Server.Port = v
		}
	}

	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 6543
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *RuntimeConfig) validate() error {
	if c.Engine.DefaultLockTTL <= 0 {
		return InvalidArgumentf("default_lock_ttl must be positive, got %d", c.Engine.DefaultLockTTL)
	}
	if c.Engine.GateMinimum > c.Engine.GateMaximum {
		return InvalidArgumentf("gate_minimum (%f) must not exceed gate_maximum (%f)", c.Engine.GateMinimum, c.Engine.GateMaximum)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return InvalidArgumentf("port must be in (0, 65535], got %d", c.Server.Port)
	}
	return nil
}

// applyEngineConfig copies the runtime's engine tunables onto a nodenet:
// the global gate parameter defaults new gates start from, the ttl
// substituted for lock acquisitions that pass none, and the activation an
// Activator must exceed to open its gates.
func (nn *Nodenet) applyEngineConfig(cfg EngineConfig) {
	nn.gateDefaults.Minimum = cfg.GateMinimum
	nn.gateDefaults.Maximum = cfg.GateMaximum
	nn.gateDefaults.Threshold = cfg.GateThreshold
	nn.gateDefaults.Amplification = cfg.GateAmplification
	nn.defaultLockTTL = cfg.DefaultLockTTL
	nn.activatorOnThreshold = cfg.ActivatorOnThreshold
}

// cleanIniString trims whitespace and a handful of quoting artifacts the
// ini parser sometimes leaves behind.
func cleanIniString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return s
}
