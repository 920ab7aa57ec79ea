// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
//
// AppConfig is where everything specific to this application lives: the
// MongoDB connection, the OpenAI-compatible endpoint used for embeddings
// and explanations, and the tunables of the recommendation pipeline.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connections in the driver pool
	MongoMinPoolSize uint64 // Min connections kept warm in the pool

	// OpenAI-compatible API configuration. The API key is never stored in
	// config; OpenAIKeyEnv names the environment variable that holds it.
	OpenAIBaseURL string        // e.g., https://api.openai.com/v1
	OpenAIKeyEnv  string        // env var holding the API key (default: OPENAI_API_KEY)
	EmbedModel    string        // embedding model name
	ChatModel     string        // chat model used for explanations
	OpenAITimeout time.Duration // per-request timeout for upstream calls

	// Recommendation pipeline tunables
	SimilarityThreshold float64 // minimum cosine similarity for a match
	MatchCount          int     // number of ranked recommendations to keep
	ExplainMaxTokens    int     // token bound on the generated explanation
	ExplainTemperature  float64 // sampling temperature for the explanation

	// Party behavior
	LateJoinPolicy string // "reject" or "spectator"

	// Vector search configuration
	VectorSearchMode string // "scan" (in-process) or "atlas" ($vectorSearch)
	AtlasIndexName   string // Atlas search index name (only used in atlas mode)
}
