package config

import "time"

// Config represents the complete application configuration, loaded from the
// config file, environment variables, and flag overrides via viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration.
// Valid levels: trace, debug, info, warn, error.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig contains the Prometheus ops telemetry configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// RedisConfig locates the durable stats backend. An empty Addr selects the
// in-memory backend only.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StatsConfig tunes the day-bucketed analysis counters.
type StatsConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
	RollupDays    int `mapstructure:"rollup_days"`
}

// QuotaConfig tunes the one-free-analysis window. An empty secret disables
// token signing.
type QuotaConfig struct {
	Window time.Duration `mapstructure:"window"`
	Secret string        `mapstructure:"secret"`
}

// RateLimitConfig bounds admin login attempts per client IP.
type RateLimitConfig struct {
	LoginLimit  int           `mapstructure:"login_limit"`
	LoginWindow time.Duration `mapstructure:"login_window"`
}

// ExtractConfig tunes the OCR fallback.
type ExtractConfig struct {
	MaxOCRPages  int      `mapstructure:"max_ocr_pages"`
	OCRScale     float64  `mapstructure:"ocr_scale"`
	OCRLanguages []string `mapstructure:"ocr_languages"`
}

// LLMConfig locates the summarization provider. An empty APIKey puts the
// service in mock mode.
type LLMConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// AdminConfig gates the metrics dashboard. An empty password disables admin
// login entirely.
type AdminConfig struct {
	Password string `mapstructure:"password"`
}
