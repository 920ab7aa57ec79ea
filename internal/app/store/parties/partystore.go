// internal/app/store/parties/partystore.go
package partystore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/moviematch/internal/app/system/partycode"
	"github.com/dalemusser/moviematch/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

var (
	// ErrCodeExhausted means repeated collisions on the generated party
	// code; with a 36^6 space this only happens if the generator is broken.
	ErrCodeExhausted = errors.New("could not generate a unique party code")
	ErrNotHost       = errors.New("only the host can start the party")
	ErrNotWaiting    = errors.New("party has already been started")
)

const createAttempts = 5

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("parties")}
}

// Create inserts a new party in the waiting state with a fresh unique
// code. Code collisions against the unique index are retried with a new
// code.
func (s *Store) Create(ctx context.Context, p models.Party) (models.Party, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.NameCI = text.Fold(p.Name)
	p.Status = models.PartyWaiting
	p.Results = nil
	p.CreatedAt = now
	p.UpdatedAt = now

	for i := 0; i < createAttempts; i++ {
		code, err := partycode.New()
		if err != nil {
			return models.Party{}, err
		}
		p.Code = code
		_, err = s.c.InsertOne(ctx, p)
		if err == nil {
			return p, nil
		}
		if !wafflemongo.IsDup(err) {
			return models.Party{}, err
		}
	}
	return models.Party{}, ErrCodeExhausted
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Party, error) {
	var p models.Party
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Party{}, err
	}
	return p, nil
}

func (s *Store) GetByCode(ctx context.Context, code string) (models.Party, error) {
	var p models.Party
	err := s.c.FindOne(ctx, bson.M{"code": partycode.Normalize(code)}).Decode(&p)
	if err != nil {
		return models.Party{}, err
	}
	return p, nil
}

// Start moves a waiting party into in_progress. Only the host may start,
// and a party can be started once.
func (s *Store) Start(ctx context.Context, id primitive.ObjectID, hostID string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "host_id": hostID, "status": models.PartyWaiting},
		bson.M{"$set": bson.M{
			"status":     models.PartyInProgress,
			"updated_at": time.Now().UTC(),
		}})
	if err != nil {
		return err
	}
	if res.ModifiedCount == 1 {
		return nil
	}

	// Distinguish the failure for the caller.
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.HostID != hostID {
		return ErrNotHost
	}
	return ErrNotWaiting
}

// BeginCompletion attempts the in_progress → complete transition. It
// reports true only when this call performed the flip, so concurrent
// callers resolve to exactly one winner.
func (s *Store) BeginCompletion(ctx context.Context, id primitive.ObjectID) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.PartyInProgress},
		bson.M{"$set": bson.M{
			"status":       models.PartyComplete,
			"completed_at": now,
			"updated_at":   now,
		}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// StoreResults persists the recommendation list for a completed party.
// The write is conditional on results still being absent, so a repair
// racing another writer persists at most once. Reports whether this call
// performed the write.
func (s *Store) StoreResults(ctx context.Context, id primitive.ObjectID, results []models.Recommendation) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":    id,
			"status": models.PartyComplete,
			"$or": bson.A{
				bson.M{"results": bson.M{"$exists": false}},
				bson.M{"results": bson.M{"$size": 0}},
				bson.M{"results": nil},
			},
		},
		bson.M{"$set": bson.M{
			"results":    results,
			"updated_at": time.Now().UTC(),
		}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Delete removes a party by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
