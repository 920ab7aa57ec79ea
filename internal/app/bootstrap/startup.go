// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	moviestore "github.com/dalemusser/moviematch/internal/app/store/movies"
	"github.com/dalemusser/moviematch/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// MovieMatch applies any TIMEOUT_* environment overrides and reports the
// size of the movie corpus. An empty corpus is not fatal (the loader may
// run later) but every completion would come back empty, so it is worth a
// loud warning.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeout overrides applied from environment", zap.Int("count", n))
	}

	countCtx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	count, err := moviestore.New(deps.MongoDatabase).Count(countCtx)
	if err != nil {
		logger.Warn("could not count movie corpus", zap.Error(err))
		return nil
	}
	if count == 0 {
		logger.Warn("movie corpus is empty; run the corpus loader before serving recommendations")
		return nil
	}
	logger.Info("movie corpus loaded", zap.Int64("movies", count))
	return nil
}
