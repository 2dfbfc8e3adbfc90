// Package config loads the engine's recognised options (§6): LLM and
// Verifier timeouts, the Gate's master mode and module overrides, and the
// Codec's internal patch version. Layered the way the teacher's own file
// loader is layered: YAML file, then environment variable overrides, then
// validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sentinel-cycle/engine/internal/approval"
)

// Config is the engine's full recognised option set.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm" validate:"required"`
	Verifier VerifierConfig `yaml:"verifier" mapstructure:"verifier" validate:"required"`
	Gate     GateConfig     `yaml:"gate" mapstructure:"gate" validate:"required"`
	Codec    CodecConfig    `yaml:"codec" mapstructure:"codec" validate:"required"`
}

type LLMConfig struct {
	TimeoutMs int `yaml:"timeout_ms" mapstructure:"timeout_ms" validate:"gt=0"`
}

type VerifierConfig struct {
	TimeoutMs int `yaml:"timeout_ms" mapstructure:"timeout_ms" validate:"gt=0"`
}

type GateConfig struct {
	MasterMode      string            `yaml:"master_mode" mapstructure:"master_mode" validate:"oneof=HITL AUTONOMOUS"`
	ModuleOverrides map[string]string `yaml:"module_overrides" mapstructure:"module_overrides"`
}

type CodecConfig struct {
	InternalPatchVersion int `yaml:"internal_patch_version" mapstructure:"internal_patch_version" validate:"gt=0"`
}

// Default returns §6's defaults verbatim.
func Default() Config {
	return Config{
		LLM:      LLMConfig{TimeoutMs: 60000},
		Verifier: VerifierConfig{TimeoutMs: 30000},
		Gate:     GateConfig{MasterMode: "HITL", ModuleOverrides: map[string]string{}},
		Codec:    CodecConfig{InternalPatchVersion: 2},
	}
}

// EnvLookup abstracts os.LookupEnv for tests, mirroring the teacher's
// config loader shape.
type EnvLookup func(key string) (string, bool)

func defaultEnvLookup(key string) (string, bool) { return os.LookupEnv(key) }

// Load reads path (if non-empty and present) over the defaults, then
// applies SENTINEL_-prefixed environment overrides, then validates.
func Load(path string, lookup EnvLookup) (Config, error) {
	if lookup == nil {
		lookup = defaultEnvLookup
	}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file %q: %w", path, err)
			}
		} else if len(strings.TrimSpace(string(data))) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %q: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg, lookup)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config, lookup EnvLookup) {
	if v, ok := lookup("SENTINEL_LLM_TIMEOUT_MS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.TimeoutMs = n
		}
	}
	if v, ok := lookup("SENTINEL_VERIFIER_TIMEOUT_MS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Verifier.TimeoutMs = n
		}
	}
	if v, ok := lookup("SENTINEL_GATE_MASTER_MODE"); ok {
		cfg.Gate.MasterMode = strings.ToUpper(strings.TrimSpace(v))
	}
	if v, ok := lookup("SENTINEL_CODEC_INTERNAL_PATCH_VERSION"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Codec.InternalPatchVersion = n
		}
	}
}

// LLMTimeout returns the LLM timeout as a time.Duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutMs) * time.Millisecond
}

// VerifierTimeout returns the Verifier timeout as a time.Duration.
func (c Config) VerifierTimeout() time.Duration {
	return time.Duration(c.Verifier.TimeoutMs) * time.Millisecond
}

// ToGateConfig converts the file-level Gate settings into approval.Config.
func (c Config) ToGateConfig() approval.Config {
	overrides := make(map[string]approval.Mode, len(c.Gate.ModuleOverrides))
	for module, mode := range c.Gate.ModuleOverrides {
		overrides[module] = approval.Mode(strings.ToUpper(mode))
	}
	return approval.Config{
		MasterMode:      approval.Mode(strings.ToUpper(c.Gate.MasterMode)),
		ModuleOverrides: overrides,
	}
}
