// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for MovieMatch.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, match_count, etc.
//   - Environment variables: MOVIEMATCH_MONGO_URI, MOVIEMATCH_MATCH_COUNT, etc.
//   - Command-line flags: --mongo_uri, --match_count, etc.
//
// Float-valued tunables are declared as strings and parsed in LoadConfig
// because the config layer only carries string, int, bool, and duration.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "moviematch", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// OpenAI-compatible API. The key itself comes from the environment
	// variable named by openai_api_key_env and is never placed in config.
	{Name: "openai_base_url", Default: "https://api.openai.com/v1", Desc: "Base URL of the OpenAI-compatible API"},
	{Name: "openai_api_key_env", Default: "OPENAI_API_KEY", Desc: "Name of the env var holding the API key"},
	{Name: "embed_model", Default: "text-embedding-3-small", Desc: "Embedding model name"},
	{Name: "chat_model", Default: "gpt-4o-mini", Desc: "Chat model used for explanations"},
	{Name: "openai_timeout", Default: "30s", Desc: "Per-request timeout for upstream API calls"},

	// Recommendation pipeline tunables
	{Name: "similarity_threshold", Default: "0", Desc: "Minimum cosine similarity for a corpus match (-1..1)"},
	{Name: "match_count", Default: 3, Desc: "Number of ranked recommendations to keep"},
	{Name: "explain_max_tokens", Default: 150, Desc: "Token bound on the generated explanation"},
	{Name: "explain_temperature", Default: "0.7", Desc: "Sampling temperature for the explanation"},

	// Party behavior
	{Name: "late_join_policy", Default: "reject", Desc: "Late joiner handling: 'reject' or 'spectator'"},

	// Vector search
	{Name: "vector_search_mode", Default: "scan", Desc: "Similarity search backend: 'scan' or 'atlas'"},
	{Name: "atlas_index_name", Default: "movies_embedding", Desc: "Atlas vector search index name (atlas mode only)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, MOVIEMATCH_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "MOVIEMATCH", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	threshold, err := parseFloatKey("similarity_threshold", appValues.String("similarity_threshold"))
	if err != nil {
		return nil, AppConfig{}, err
	}
	temperature, err := parseFloatKey("explain_temperature", appValues.String("explain_temperature"))
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		OpenAIBaseURL: appValues.String("openai_base_url"),
		OpenAIKeyEnv:  appValues.String("openai_api_key_env"),
		EmbedModel:    appValues.String("embed_model"),
		ChatModel:     appValues.String("chat_model"),
		OpenAITimeout: appValues.Duration("openai_timeout", 30*time.Second),

		SimilarityThreshold: threshold,
		MatchCount:          appValues.Int("match_count"),
		ExplainMaxTokens:    appValues.Int("explain_max_tokens"),
		ExplainTemperature:  temperature,

		LateJoinPolicy: appValues.String("late_join_policy"),

		VectorSearchMode: appValues.String("vector_search_mode"),
		AtlasIndexName:   appValues.String("atlas_index_name"),
	}

	return coreCfg, appCfg, nil
}

func parseFloatKey(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config %s: %q is not a number: %w", name, raw, err)
	}
	return v, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// This is the right place to enforce required fields or invariants that
// involve both the core and app configs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.SimilarityThreshold < -1 || appCfg.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be within [-1, 1], got %g", appCfg.SimilarityThreshold)
	}
	if appCfg.MatchCount <= 0 {
		return fmt.Errorf("match_count must be positive, got %d", appCfg.MatchCount)
	}
	if appCfg.ExplainTemperature < 0 {
		return fmt.Errorf("explain_temperature must not be negative, got %g", appCfg.ExplainTemperature)
	}

	switch appCfg.LateJoinPolicy {
	case "reject", "spectator":
	default:
		return fmt.Errorf("late_join_policy must be 'reject' or 'spectator', got %q", appCfg.LateJoinPolicy)
	}

	switch appCfg.VectorSearchMode {
	case "scan":
	case "atlas":
		if appCfg.AtlasIndexName == "" {
			return fmt.Errorf("vector_search_mode 'atlas' requires atlas_index_name")
		}
	default:
		return fmt.Errorf("vector_search_mode must be 'scan' or 'atlas', got %q", appCfg.VectorSearchMode)
	}

	return nil
}
