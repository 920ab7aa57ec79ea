// internal/app/system/recommend/aggregate.go
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// GroupVector builds the combined query vector for a group: one embedding
// per participant, fetched concurrently, then the element-wise arithmetic
// mean across all of them.
//
// Any single embedding failure fails the whole aggregation; there is no
// partial averaging.
func (s *Service) GroupVector(ctx context.Context, members []MemberPreferences) ([]float64, error) {
	if len(members) == 0 {
		return nil, errors.New("no participants to aggregate")
	}
	for _, m := range members {
		if len(m.Answers) == 0 {
			return nil, fmt.Errorf("participant %q has no answers", m.Name)
		}
	}

	vectors := make([][]float64, len(members))
	eg, gctx := errgroup.WithContext(ctx)
	for i, m := range members {
		eg.Go(func() error {
			v, err := s.embedder.Embed(gctx, memberQuery(m))
			if err != nil {
				return fmt.Errorf("embed preferences for %q: %w", m.Name, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: participant %d returned %d, want %d", i, len(v), dim)
		}
	}

	avg := make([]float64, dim)
	for _, v := range vectors {
		for i, x := range v {
			avg[i] += x
		}
	}
	n := float64(len(vectors))
	for i := range avg {
		avg[i] /= n
	}
	return avg, nil
}

// memberQuery concatenates one participant's answer values, in the order
// they were recorded, into the text that gets embedded.
func memberQuery(m MemberPreferences) string {
	parts := make([]string, 0, len(m.Answers))
	for _, a := range m.Answers {
		parts = append(parts, a.Answer)
	}
	return strings.Join(parts, ". ")
}
