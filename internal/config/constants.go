package config

// Constants defining default values for application configuration
const (
	DefaultDBPath = "./news.db"

	DefaultServerPort = 8080
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultInterval = 0 // Minutes between ingestion passes, 0 for one-shot

	DefaultBackfillDelaySeconds = 2 // Pacing between image generation calls

	DefaultLogLevel = "info"

	// Upstream service endpoints. Overridable via environment for testing.
	DefaultFeedBaseURL   = "https://content.guardianapis.com"
	DefaultTextModelURL  = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash-latest:generateContent"
	DefaultImageModelURL = "https://generativelanguage.googleapis.com/v1beta/models/imagen-3.0-generate-002:predict"
)
