// Package recommend turns a finished party's preference answers into a
// ranked, explained movie recommendation list.
//
// The pipeline has three stages: aggregate (one averaged embedding for the
// whole group), rank (similarity search plus batch fetch), and explain (one
// generated rationale for the top item). The completion coordinator runs it
// exactly once per party.
package recommend

import (
	"context"
	"fmt"

	"github.com/dalemusser/moviematch/internal/domain/models"
	"go.uber.org/zap"
)

// Embedder produces fixed-dimensionality vectors for free text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// TextGenerator produces a bounded completion for a prompt.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// MovieIndex is the corpus: nearest-neighbor search plus batch lookup.
type MovieIndex interface {
	Search(ctx context.Context, vector []float64, threshold float64, count int) ([]models.MovieMatch, error)
	FetchByIDs(ctx context.Context, ids []int64) ([]models.Movie, error)
}

// MemberPreferences is one participant's name and ordered quiz answers.
type MemberPreferences struct {
	Name    string
	Answers []models.Answer
}

// Config carries the tunables of the pipeline.
type Config struct {
	Threshold   float64 // minimum similarity for a corpus item to qualify
	Count       int     // maximum items in the ranked result
	MaxTokens   int     // bound on the generated explanation
	Temperature float64 // sampling temperature for the explanation
}

// Service runs the three pipeline stages.
type Service struct {
	embedder Embedder
	gen      TextGenerator
	movies   MovieIndex
	cfg      Config
	log      *zap.Logger
}

// NewService wires the pipeline. Zero config fields fall back to the values
// the original quiz flow shipped with.
func NewService(embedder Embedder, gen TextGenerator, movies MovieIndex, cfg Config, logger *zap.Logger) *Service {
	if cfg.Count <= 0 {
		cfg.Count = 3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	return &Service{
		embedder: embedder,
		gen:      gen,
		movies:   movies,
		cfg:      cfg,
		log:      logger,
	}
}

// Recommend runs aggregate → rank → explain for the given group.
//
// An empty ranked list (nothing above the threshold) is a valid terminal
// outcome, returned as a nil error with an empty slice. Explanation failure
// degrades to the top item's raw description and never fails the call.
func (s *Service) Recommend(ctx context.Context, members []MemberPreferences) ([]models.Recommendation, error) {
	vector, err := s.GroupVector(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	recs, err := s.Rank(ctx, vector)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	if len(recs) == 0 {
		return recs, nil
	}

	explanation, err := s.Explain(ctx, recs[0], members)
	if err != nil {
		// Non-fatal: serve the raw description instead of blocking
		// completion on the text model.
		s.log.Warn("explanation generation failed, using raw description",
			zap.String("title", recs[0].Title),
			zap.Error(err))
		explanation = recs[0].Description
	}
	recs[0].Explanation = explanation
	return recs, nil
}
