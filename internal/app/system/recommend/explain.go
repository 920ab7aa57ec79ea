// internal/app/system/recommend/explain.go
package recommend

import (
	"context"
	"strings"

	"github.com/dalemusser/moviematch/internal/domain/models"
)

// explanationPrompt is the fixed template for the generated rationale.
const explanationPrompt = `You are a movie recommendation expert. Generate a compelling 2-3 sentence explanation for why this movie matches the group's preferences.

Movie: {movie_title}
Description: {movie_description}
Group preferences: {group_text}

Write a natural, engaging explanation. Be specific about how the movie matches their preferences. Do not use quotation marks, greetings, or meta-commentary. Start directly with the explanation.

Explanation:`

// Explain generates the natural-language rationale for the top-ranked item.
// One call to the text model, bounded output, no retries.
func (s *Service) Explain(ctx context.Context, top models.Recommendation, members []MemberPreferences) (string, error) {
	prompt := strings.NewReplacer(
		"{movie_title}", top.Title,
		"{movie_description}", top.Description,
		"{group_text}", FormatGroupPreferences(members),
	).Replace(explanationPrompt)

	return s.gen.Complete(ctx, prompt, s.cfg.MaxTokens, s.cfg.Temperature)
}

// FormatGroupPreferences renders the group's answers into the compact
// summary the prompt consumes: one clause per participant, the question
// stem (text before "?") and answer lower-cased and comma-joined.
//
//	Ava (what's your mood for tonight: light & uplifting, ...); Ben (...)
func FormatGroupPreferences(members []MemberPreferences) string {
	clauses := make([]string, 0, len(members))
	for _, m := range members {
		pairs := make([]string, 0, len(m.Answers))
		for _, a := range m.Answers {
			stem, _, _ := strings.Cut(a.Question, "?")
			pairs = append(pairs, strings.ToLower(stem)+": "+strings.ToLower(a.Answer))
		}
		clauses = append(clauses, m.Name+" ("+strings.Join(pairs, ", ")+")")
	}
	return strings.Join(clauses, "; ")
}
