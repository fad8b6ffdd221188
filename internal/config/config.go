package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "ANITRACK_CONFIG"

	defaultPort            = "8080"
	defaultAnimeAPIBaseURL = "https://api.jikan.moe/v4"
	defaultJWTSecret       = "dev-secret"
)

// Config holds process-level settings. Values come from an optional YAML
// file, with environment variables taking precedence.
type Config struct {
	Port            string `yaml:"port"`
	DatabaseDSN     string `yaml:"databaseDsn"`
	JWTSecret       string `yaml:"jwtSecret"`
	AnimeAPIBaseURL string `yaml:"animeApiBaseUrl"`
	MetricsEnabled  bool   `yaml:"metricsEnabled"`
	MetricsToken    string `yaml:"metricsToken"`
}

func defaults() Config {
	return Config{
		Port:            defaultPort,
		AnimeAPIBaseURL: defaultAnimeAPIBaseURL,
		JWTSecret:       defaultJWTSecret,
	}
}

// Load reads the YAML file named by ANITRACK_CONFIG (if any) and applies
// environment overrides on top of it.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setFromEnv(&cfg.Port, "PORT")
	setFromEnv(&cfg.DatabaseDSN, "DATABASE_DSN")
	setFromEnv(&cfg.JWTSecret, "JWT_SECRET")
	setFromEnv(&cfg.AnimeAPIBaseURL, "ANIME_API_BASE_URL")
	setFromEnv(&cfg.MetricsToken, "METRICS_TOKEN")

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = v == "1" || v == "true"
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// UsingDefaultSecret reports whether the token secret was never configured.
func (c Config) UsingDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}
