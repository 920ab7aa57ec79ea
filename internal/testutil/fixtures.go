package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/moviematch/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateParty inserts a party with the given code, name, and status.
// Returns the created party with its generated ID.
func (f *Fixtures) CreateParty(ctx context.Context, code, name, status string) models.Party {
	f.t.Helper()

	now := time.Now().UTC()
	party := models.Party{
		ID:        primitive.NewObjectID(),
		Code:      code,
		Name:      name,
		NameCI:    text.Fold(name),
		HostID:    uuid.NewString(),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("parties").InsertOne(ctx, party)
	if err != nil {
		f.t.Fatalf("failed to create test party: %v", err)
	}

	return party
}

// CreateParticipant inserts a participant into the given party. The answers
// slice may be nil for a participant that has not finished the quiz; a
// non-nil slice marks the participant done.
func (f *Fixtures) CreateParticipant(ctx context.Context, partyID primitive.ObjectID, name string, answers []models.Answer) models.Participant {
	f.t.Helper()

	p := models.Participant{
		ID:       uuid.NewString(),
		PartyID:  partyID,
		Name:     name,
		Answers:  answers,
		IsDone:   len(answers) > 0,
		JoinedAt: time.Now().UTC(),
	}

	_, err := f.db.Collection("participants").InsertOne(ctx, p)
	if err != nil {
		f.t.Fatalf("failed to create test participant: %v", err)
	}

	return p
}

// CreateMovie inserts a corpus movie with the given id, title, and
// embedding vector.
func (f *Fixtures) CreateMovie(ctx context.Context, id int64, title, description string, embedding []float64) models.Movie {
	f.t.Helper()

	m := models.Movie{
		ID:          id,
		Title:       title,
		Description: description,
		Content:     title + ": " + description,
		Embedding:   embedding,
	}

	_, err := f.db.Collection("movies").InsertOne(ctx, m)
	if err != nil {
		f.t.Fatalf("failed to create test movie: %v", err)
	}

	return m
}
