package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix               = "POSTIN"
	defaultHTTPAddress      = "0.0.0.0:8080"
	defaultDatabasePath     = "postin.db"
	defaultLogLevel         = "info"
	defaultTokenTTLMinutes  = 1440
	defaultRetryBackoffMs   = 1500
	defaultMaxContextLength = 5
)

// defaultModels is the ordered generation fallback list.
var defaultModels = []string{"gemini-2.5-flash-lite"}

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	SigningSecret      string
	TokenTTL           time.Duration
	AIAPIKey           string
	AIModels           []string
	AIRetryBackoff     time.Duration
	MaxContextComments int
	MentionMarkers     []string
	FallbackMessages   []string
	RedisAddress       string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("ai.models", defaultModels)
	configViper.SetDefault("ai.retry_backoff_ms", defaultRetryBackoffMs)
	configViper.SetDefault("ai.max_context_comments", defaultMaxContextLength)
	configViper.SetDefault("ai.mention_markers", []string{})
	configViper.SetDefault("ai.fallback_messages", []string{})
	configViper.SetDefault("redis.address", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		SigningSecret:      configViper.GetString("auth.signing_secret"),
		TokenTTL:           time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		AIAPIKey:           configViper.GetString("ai.api_key"),
		AIModels:           configViper.GetStringSlice("ai.models"),
		AIRetryBackoff:     time.Duration(configViper.GetInt("ai.retry_backoff_ms")) * time.Millisecond,
		MaxContextComments: configViper.GetInt("ai.max_context_comments"),
		MentionMarkers:     configViper.GetStringSlice("ai.mention_markers"),
		FallbackMessages:   configViper.GetStringSlice("ai.fallback_messages"),
		RedisAddress:       configViper.GetString("redis.address"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if len(c.AIModels) == 0 {
		return fmt.Errorf("ai.models requires at least one candidate model")
	}
	if c.MaxContextComments <= 0 {
		return fmt.Errorf("ai.max_context_comments must be positive")
	}
	return nil
}
