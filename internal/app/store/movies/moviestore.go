// internal/app/store/movies/moviestore.go
package moviestore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/dalemusser/moviematch/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SearchMode selects how Search finds nearest neighbors.
type SearchMode string

const (
	// ModeScan computes cosine similarity over the whole corpus in
	// process. Exact and dependency-free; fine for corpora in the
	// thousands.
	ModeScan SearchMode = "scan"

	// ModeAtlas delegates to an Atlas Search $vectorSearch index.
	ModeAtlas SearchMode = "atlas"
)

type Store struct {
	c          *mongo.Collection
	mode       SearchMode
	atlasIndex string
}

// New returns a store that searches by in-process cosine scan.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("movies"), mode: ModeScan}
}

// NewAtlas returns a store that searches through the named Atlas vector
// index.
func NewAtlas(db *mongo.Database, index string) *Store {
	return &Store{c: db.Collection("movies"), mode: ModeAtlas, atlasIndex: index}
}

// UpsertByTitle inserts or refreshes one corpus entry keyed by title.
// The numeric id only lands on first insert, so reloading a corpus file
// keeps ids stable.
func (s *Store) UpsertByTitle(ctx context.Context, m models.Movie) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"title": m.Title},
		bson.M{
			"$set": bson.M{
				"description": m.Description,
				"content":     m.Content,
				"embedding":   m.Embedding,
			},
			"$setOnInsert": bson.M{"_id": m.ID},
		},
		options.Update().SetUpsert(true))
	return err
}

func (s *Store) GetByID(ctx context.Context, id int64) (models.Movie, error) {
	var m models.Movie
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return models.Movie{}, err
	}
	return m, nil
}

// FetchByIDs returns the movies for the given ids in one batch read.
// Unknown ids are silently absent from the result.
func (s *Store) FetchByIDs(ctx context.Context, ids []int64) ([]models.Movie, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"embedding": 0}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Movie
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}

// Search returns up to count corpus items with similarity at or above
// threshold, best first. Ties are broken by ascending id so the result is
// deterministic for a fixed corpus and query vector.
func (s *Store) Search(ctx context.Context, vector []float64, threshold float64, count int) ([]models.MovieMatch, error) {
	if count <= 0 {
		return nil, nil
	}
	switch s.mode {
	case ModeAtlas:
		return s.searchAtlas(ctx, vector, threshold, count)
	default:
		return s.searchScan(ctx, vector, threshold, count)
	}
}

func (s *Store) searchScan(ctx context.Context, vector []float64, threshold float64, count int) ([]models.MovieMatch, error) {
	cur, err := s.c.Find(ctx, bson.M{"embedding": bson.M{"$exists": true}},
		options.Find().SetProjection(bson.M{"_id": 1, "embedding": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var matches []models.MovieMatch
	for cur.Next(ctx) {
		var doc struct {
			ID        int64     `bson:"_id"`
			Embedding []float64 `bson:"embedding"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		if len(doc.Embedding) != len(vector) {
			return nil, fmt.Errorf("movie %d: embedding dimension %d, query dimension %d", doc.ID, len(doc.Embedding), len(vector))
		}
		score := cosine(vector, doc.Embedding)
		if score >= threshold {
			matches = append(matches, models.MovieMatch{ID: doc.ID, Score: score})
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > count {
		matches = matches[:count]
	}
	return matches, nil
}

func (s *Store) searchAtlas(ctx context.Context, vector []float64, threshold float64, count int) ([]models.MovieMatch, error) {
	// numCandidates trades recall for latency; 20x the limit is the
	// commonly recommended starting point.
	numCandidates := count * 20
	if numCandidates < 100 {
		numCandidates = 100
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         s.atlasIndex,
			"path":          "embedding",
			"queryVector":   vector,
			"numCandidates": numCandidates,
			"limit":         count,
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":   1,
			"score": bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var matches []models.MovieMatch
	for cur.Next(ctx) {
		var doc struct {
			ID    int64   `bson:"_id"`
			Score float64 `bson:"score"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		if doc.Score >= threshold {
			matches = append(matches, models.MovieMatch{ID: doc.ID, Score: doc.Score})
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

// cosine is the cosine similarity of two equal-length vectors. A zero
// vector on either side yields 0.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
