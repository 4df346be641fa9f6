package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath string

	// Server settings
	ServerHost string
	ServerPort int

	// Upstream credentials and endpoints
	GuardianAPIKey string
	GeminiAPIKey   string
	FeedBaseURL    string
	TextModelURL   string
	ImageModelURL  string

	// Ingestion settings
	Interval      time.Duration
	BackfillDelay time.Duration

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults
// plus credentials read from the environment.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBPath:         DefaultDBPath,
		ServerHost:     DefaultServerHost,
		ServerPort:     DefaultServerPort,
		GuardianAPIKey: GetEnvString("GUARDIAN_API_KEY", ""),
		GeminiAPIKey:   GetEnvString("GEMINI_API_KEY", ""),
		FeedBaseURL:    GetEnvString("NEWSAPI_FEED_BASE_URL", DefaultFeedBaseURL),
		TextModelURL:   GetEnvString("NEWSAPI_TEXT_MODEL_URL", DefaultTextModelURL),
		ImageModelURL:  GetEnvString("NEWSAPI_IMAGE_MODEL_URL", DefaultImageModelURL),
		Interval:       time.Duration(DefaultInterval) * time.Minute,
		BackfillDelay:  time.Duration(DefaultBackfillDelaySeconds) * time.Second,
		LogLevel:       logLevel,
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// ValidateUpstream reports an error when a credential needed to reach the
// upstream feed and model services is missing. Commands that never call
// upstream (purge) skip this check.
func (c *Config) ValidateUpstream() error {
	if c.GuardianAPIKey == "" {
		return fmt.Errorf("GUARDIAN_API_KEY is not set in the environment")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set in the environment")
	}
	return nil
}
