// internal/app/store/participants/participantstore.go
package participantstore

import (
	"context"
	"time"

	"github.com/dalemusser/moviematch/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("participants")}
}

// Create inserts a new participant into a party. The participant starts
// not-done; answers arrive later through SubmitAnswers.
func (s *Store) Create(ctx context.Context, p models.Participant) (models.Participant, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.IsDone = false
	p.Answers = nil
	p.JoinedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Participant{}, err
	}
	return p, nil
}

// MarkSpectator flags a participant as done without answers, so a late
// joiner never holds up the completion barrier.
func (s *Store) MarkSpectator(ctx context.Context, id string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_done": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Participant, error) {
	var p models.Participant
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Participant{}, err
	}
	return p, nil
}

// SubmitAnswers writes the participant's answers and done flag in one
// update, so a roster read never observes answers without is_done or the
// other way around. Resubmission replaces the previous answers.
func (s *Store) SubmitAnswers(ctx context.Context, partyID primitive.ObjectID, participantID string, answers []models.Answer) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": participantID, "party_id": partyID},
		bson.M{"$set": bson.M{
			"answers": answers,
			"is_done": true,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListByParty returns the party roster in join order.
func (s *Store) ListByParty(ctx context.Context, partyID primitive.ObjectID) ([]models.Participant, error) {
	cur, err := s.c.Find(ctx, bson.M{"party_id": partyID},
		options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Participant
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByParty returns the number of participants in a party.
func (s *Store) CountByParty(ctx context.Context, partyID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"party_id": partyID})
}

// DeleteByParty removes all participants belonging to a party.
// Returns the number of documents deleted.
func (s *Store) DeleteByParty(ctx context.Context, partyID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"party_id": partyID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
