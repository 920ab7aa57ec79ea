// internal/app/system/recommend/rank.go
package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/dalemusser/moviematch/internal/domain/models"
)

// Rank retrieves corpus items near the query vector and returns them as
// score-merged recommendations, best first.
//
// The ranking is deterministic for a fixed corpus and vector: descending by
// similarity, ties broken by ascending movie id. An empty result (nothing
// at or above the threshold) is not an error.
func (s *Service) Rank(ctx context.Context, vector []float64) ([]models.Recommendation, error) {
	matches, err := s.movies.Search(ctx, vector, s.cfg.Threshold, s.cfg.Count)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(matches) == 0 {
		return []models.Recommendation{}, nil
	}

	ids := make([]int64, 0, len(matches))
	scores := make(map[int64]float64, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
		scores[m.ID] = m.Score
	}

	// One batch lookup for all hits, never one fetch per id.
	movies, err := s.movies.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch movies: %w", err)
	}

	recs := make([]models.Recommendation, 0, len(movies))
	for _, m := range movies {
		recs = append(recs, models.Recommendation{
			MovieID:     m.ID,
			Title:       m.Title,
			Description: m.Description,
			Similarity:  scores[m.ID],
		})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Similarity != recs[j].Similarity {
			return recs[i].Similarity > recs[j].Similarity
		}
		return recs[i].MovieID < recs[j].MovieID
	})
	return recs, nil
}
