package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultShareLinkTemplate = "%s/#/student/%s"

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	JWTSecret         string
	AccessTokenTTL    time.Duration
	FrontendURL       string
	ShareLinkTemplate string
	SummaryCacheTTL   time.Duration
	CORSAllowOrigins  string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FEEDBACK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Teacher Feedback Collection System API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("jwt.access_ttl", "30m")
	v.SetDefault("frontend.url", "http://localhost:3000")
	v.SetDefault("share.link_template", defaultShareLinkTemplate)
	v.SetDefault("summary.cache_ttl", "5m")
	v.SetDefault("cors.allow_origins", "*")

	accessTTL, err := parseDuration(v.GetString("jwt.access_ttl"), 30*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid jwt access ttl: %w", err)
	}

	summaryTTL, err := parseDuration(v.GetString("summary.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid summary cache ttl: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		AccessTokenTTL:    accessTTL,
		FrontendURL:       strings.TrimRight(v.GetString("frontend.url"), "/"),
		ShareLinkTemplate: v.GetString("share.link_template"),
		SummaryCacheTTL:   summaryTTL,
		CORSAllowOrigins:  v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if strings.Count(cfg.ShareLinkTemplate, "%s") != 2 {
		return Config{}, fmt.Errorf("share link template must contain two %%s verbs")
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return fallback, nil
	}

	return parsed, nil
}
