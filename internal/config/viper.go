package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// NewViper builds a *viper.Viper pre-seeded with §6's defaults and bound to
// SENTINEL_-prefixed environment variables, for the CLI's `config`
// subcommand (read/write/list without going through the Load/validate
// path used by the engine itself).
func NewViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("llm.timeout_ms", def.LLM.TimeoutMs)
	v.SetDefault("verifier.timeout_ms", def.Verifier.TimeoutMs)
	v.SetDefault("gate.master_mode", def.Gate.MasterMode)
	v.SetDefault("gate.module_overrides", def.Gate.ModuleOverrides)
	v.SetDefault("codec.internal_patch_version", def.Codec.InternalPatchVersion)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	return v
}

// FromViper reads back a Config from v, validating the result.
func FromViper(v *viper.Viper) (Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read viper config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal viper config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
