// internal/domain/models/movie.go
package models

// Movie is one corpus item. The collection is read-only to the serving
// path; cmd/corpusload owns writes.
//
// Embedding dimensionality must match the embedding provider configured for
// the service — the stores and the aggregator both check it.
type Movie struct {
	ID          int64     `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Content     string    `bson:"content" json:"content"` // full text the embedding was computed from
	Embedding   []float64 `bson:"embedding" json:"-"`
}

// MovieMatch is a vector-search hit: the movie's id plus its similarity
// score against the query vector.
type MovieMatch struct {
	ID    int64   `bson:"_id"`
	Score float64 `bson:"score"`
}
