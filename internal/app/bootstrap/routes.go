// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/moviematch/internal/ai/openai"
	healthfeature "github.com/dalemusser/moviematch/internal/app/features/health"
	partiesfeature "github.com/dalemusser/moviematch/internal/app/features/parties"
	quizfeature "github.com/dalemusser/moviematch/internal/app/features/quiz"
	statusfeature "github.com/dalemusser/moviematch/internal/app/features/status"
	watchfeature "github.com/dalemusser/moviematch/internal/app/features/watch"
	moviestore "github.com/dalemusser/moviematch/internal/app/store/movies"
	participantstore "github.com/dalemusser/moviematch/internal/app/store/participants"
	partystore "github.com/dalemusser/moviematch/internal/app/store/parties"
	"github.com/dalemusser/moviematch/internal/app/system/completion"
	"github.com/dalemusser/moviematch/internal/app/system/notify"
	"github.com/dalemusser/moviematch/internal/app/system/ratelimit"
	"github.com/dalemusser/moviematch/internal/app/system/recommend"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// MovieMatch wires the upstream AI client, the movie corpus store, the
// recommendation pipeline, and the completion coordinator, then mounts
// the party API alongside health and metrics endpoints.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	aiClient, err := openai.NewClient(openai.Config{
		BaseURL:    appCfg.OpenAIBaseURL,
		APIKeyEnv:  appCfg.OpenAIKeyEnv,
		EmbedModel: appCfg.EmbedModel,
		ChatModel:  appCfg.ChatModel,
		Timeout:    appCfg.OpenAITimeout,
	})
	if err != nil {
		logger.Error("AI client init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase

	var movies *moviestore.Store
	if appCfg.VectorSearchMode == "atlas" {
		movies = moviestore.NewAtlas(db, appCfg.AtlasIndexName)
	} else {
		movies = moviestore.New(db)
	}

	recommender := recommend.NewService(aiClient, aiClient, movies, recommend.Config{
		Threshold:   appCfg.SimilarityThreshold,
		Count:       appCfg.MatchCount,
		MaxTokens:   appCfg.ExplainMaxTokens,
		Temperature: appCfg.ExplainTemperature,
	}, logger)

	hub := notify.NewHub(logger)
	coordinator := completion.NewCoordinator(
		partystore.New(db),
		participantstore.New(db),
		recommender,
		hub,
		logger,
	)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Party API: lifecycle, quiz answers, status/results, and the
	// WebSocket watch channel all share the /parties subtree.
	partiesHandler := partiesfeature.NewHandler(db, hub, partiesfeature.LateJoinPolicy(appCfg.LateJoinPolicy), logger)
	quizHandler := quizfeature.NewHandler(coordinator, logger)
	statusHandler := statusfeature.NewHandler(coordinator, logger)
	watchHandler := watchfeature.NewHandler(coordinator, hub, logger)

	// Per-IP limit on mutating requests; status polls and the watch
	// socket stay unthrottled.
	mutationLimiter := ratelimit.New(60, time.Minute)

	r.Route("/parties", func(pr chi.Router) {
		pr.Use(ratelimit.Middleware(mutationLimiter))
		partiesfeature.Register(pr, partiesHandler)
		quizfeature.Register(pr, quizHandler)
		statusfeature.Register(pr, statusHandler)
		watchfeature.Register(pr, watchHandler)
	})

	return r, nil
}
