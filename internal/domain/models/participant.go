// internal/domain/models/participant.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Answer is a single question/answer pair from the preference quiz.
//
// Answers are stored as an ordered array rather than a map: the aggregation
// step concatenates answer values in submission order, so the order a
// participant answered in must survive storage and the wire format.
type Answer struct {
	Question string `bson:"question" json:"question"`
	Answer   string `bson:"answer" json:"answer"`
}

// Participant is one member of a party. The ID is a UUID issued at join
// time and handed back to the client; it is deliberately independent of any
// authentication identity so participants can be anonymous.
type Participant struct {
	ID      string             `bson:"_id" json:"id"`
	PartyID primitive.ObjectID `bson:"party_id" json:"party_id"`
	Name    string             `bson:"name" json:"name"`

	Answers []Answer `bson:"answers,omitempty" json:"answers,omitempty"`
	IsDone  bool     `bson:"is_done" json:"is_done"`

	JoinedAt time.Time `bson:"joined_at" json:"joined_at"`
}
