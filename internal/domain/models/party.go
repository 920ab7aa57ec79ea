// internal/domain/models/party.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Party statuses. A party only moves forward through these; there is no
// transition back to an earlier status.
const (
	PartyWaiting    = "waiting"     // participants joining, quiz not started
	PartyInProgress = "in_progress" // host started the quiz, answers coming in
	PartyComplete   = "complete"    // every participant finished, results owned by the party
)

// Party is one movie-night session: a host, a short public code, and the
// participants who answer the preference quiz.
//
// NOTE:
//   - Participants are not embedded; they live in the participants
//     collection keyed by party_id.
//   - Results is written at most once, by whichever submitter wins the
//     in_progress → complete transition. A party can be "complete" with no
//     results if the recommendation pipeline failed after the status flip;
//     that degraded state is only cleared by an explicit repair.
type Party struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	Code   string             `bson:"code" json:"code"` // 6 chars, A-Z0-9, unique
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"`
	HostID string             `bson:"host_id" json:"host_id"` // participant ID of the host

	Status  string           `bson:"status" json:"status"`
	Results []Recommendation `bson:"results,omitempty" json:"results,omitempty"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Recommendation is one ranked corpus item in a party's persisted results.
// Explanation is filled in for the top item only; the rest carry just the
// similarity-ranked movie fields.
type Recommendation struct {
	MovieID     int64   `bson:"movie_id" json:"movie_id"`
	Title       string  `bson:"title" json:"title"`
	Description string  `bson:"description" json:"description"`
	Similarity  float64 `bson:"similarity" json:"similarity"`
	Explanation string  `bson:"explanation,omitempty" json:"explanation,omitempty"`
}

// Degraded reports whether the party finished without persisted results —
// the terminal state that requires an explicit repair.
func (p Party) Degraded() bool {
	return p.Status == PartyComplete && len(p.Results) == 0
}
