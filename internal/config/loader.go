// Package config provides the typed application configuration on top of
// viper's file, environment, and flag layering.
package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// SetDefaults installs the default value for every config key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("stats.retention_days", 60)
	v.SetDefault("stats.rollup_days", 14)

	v.SetDefault("quota.window", "24h")
	v.SetDefault("quota.secret", "")

	v.SetDefault("ratelimit.login_limit", 5)
	v.SetDefault("ratelimit.login_window", "15m")

	v.SetDefault("extract.max_ocr_pages", 3)
	v.SetDefault("extract.ocr_scale", 1.5)
	v.SetDefault("extract.ocr_languages", []string{"eng", "lit"})

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout", "55s")
	v.SetDefault("llm.max_chars", 20000)

	v.SetDefault("admin.password", "")
}

// Load decodes the viper state into a typed Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that cannot serve requests.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Quota.Window <= 0 {
		return fmt.Errorf("quota.window must be positive")
	}
	if c.Stats.RetentionDays <= 0 {
		return fmt.Errorf("stats.retention_days must be positive")
	}
	if c.Stats.RollupDays <= 0 {
		return fmt.Errorf("stats.rollup_days must be positive")
	}
	if c.RateLimit.LoginLimit <= 0 {
		return fmt.Errorf("ratelimit.login_limit must be positive")
	}
	if c.RateLimit.LoginWindow <= 0 {
		return fmt.Errorf("ratelimit.login_window must be positive")
	}
	if c.Extract.MaxOCRPages <= 0 {
		return fmt.Errorf("extract.max_ocr_pages must be positive")
	}
	if c.Extract.OCRScale <= 0 {
		return fmt.Errorf("extract.ocr_scale must be positive")
	}
	if c.LLM.MaxChars <= 0 {
		return fmt.Errorf("llm.max_chars must be positive")
	}
	return nil
}
