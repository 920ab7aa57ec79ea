// Command corpusload ingests a line-oriented movie catalog into the corpus
// collection. Each input line has the form
//
//	Title (runtime): description
//
// The loader embeds the full line text and upserts by title, so re-running
// it against an updated catalog refreshes descriptions and vectors while
// keeping movie ids stable.
//
// Usage:
//
//	corpusload -file movies.txt [-concurrency 4]
//
// Connection and API settings come from the same configuration as the
// service (MOVIEMATCH_* environment variables, config files, or flags).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dalemusser/moviematch/internal/ai/openai"
	"github.com/dalemusser/moviematch/internal/app/bootstrap"
	moviestore "github.com/dalemusser/moviematch/internal/app/store/movies"
	"github.com/dalemusser/moviematch/internal/app/system/timeouts"
	"github.com/dalemusser/moviematch/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	file := flag.String("file", "", "path to the movie catalog (one 'Title (runtime): description' per line)")
	concurrency := flag.Int("concurrency", 4, "number of concurrent embedding requests")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), *file, *concurrency, logger); err != nil {
		logger.Fatal("corpus load failed", zap.Error(err))
	}
}

func run(ctx context.Context, path string, concurrency int, logger *zap.Logger) error {
	coreCfg, appCfg, err := bootstrap.LoadConfig(logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := bootstrap.ValidateConfig(coreCfg, appCfg, logger); err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	deps, err := bootstrap.ConnectDB(connectCtx, coreCfg, appCfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = deps.MongoClient.Disconnect(context.Background()) }()

	aiClient, err := openai.NewClient(openai.Config{
		BaseURL:    appCfg.OpenAIBaseURL,
		APIKeyEnv:  appCfg.OpenAIKeyEnv,
		EmbedModel: appCfg.EmbedModel,
		ChatModel:  appCfg.ChatModel,
		Timeout:    appCfg.OpenAITimeout,
	})
	if err != nil {
		return err
	}

	movies, err := parseCatalog(path)
	if err != nil {
		return err
	}
	if len(movies) == 0 {
		return fmt.Errorf("%s: no catalog entries found", path)
	}
	logger.Info("catalog parsed", zap.String("file", path), zap.Int("movies", len(movies)))

	store := moviestore.New(deps.MongoDatabase)

	if concurrency < 1 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range movies {
		m := &movies[i]
		g.Go(func() error {
			vector, err := aiClient.Embed(gctx, m.Content)
			if err != nil {
				return fmt.Errorf("embed %q: %w", m.Title, err)
			}
			m.Embedding = vector

			upsertCtx, cancel := context.WithTimeout(gctx, timeouts.Medium())
			defer cancel()
			if err := store.UpsertByTitle(upsertCtx, *m); err != nil {
				return fmt.Errorf("upsert %q: %w", m.Title, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("corpus loaded",
		zap.Int("movies", len(movies)),
		zap.Int("embedding_dimension", aiClient.Dimension()))
	return nil
}

// parseCatalog reads the catalog file into Movie values without embeddings.
// Ids are assigned from the 1-based line position, which stays stable as
// long as lines are only appended.
func parseCatalog(path string) ([]models.Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var movies []models.Movie
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		m.ID = int64(lineNo)
		movies = append(movies, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return movies, nil
}

// parseLine splits "Title (runtime): description" into its parts. The
// runtime is informational only and stays inside Content, which is the text
// the embedding is computed from.
func parseLine(line string) (models.Movie, error) {
	colon := strings.Index(line, ": ")
	if colon < 0 {
		return models.Movie{}, fmt.Errorf("malformed catalog line %q", line)
	}
	head := strings.TrimSpace(line[:colon])
	description := strings.TrimSpace(line[colon+2:])
	if head == "" || description == "" {
		return models.Movie{}, fmt.Errorf("malformed catalog line %q", line)
	}

	title := head
	if open := strings.LastIndex(head, " ("); open > 0 && strings.HasSuffix(head, ")") {
		title = strings.TrimSpace(head[:open])
	}

	return models.Movie{
		Title:       title,
		Description: description,
		Content:     line,
	}, nil
}
