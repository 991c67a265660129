package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIndex stores chunks in the pdf_vectors collection. When an Atlas
// vector search index is configured, queries run through $vectorSearch;
// otherwise candidates are filtered by scope in the database and scored
// in process. The scope filter is applied on every path.
type MongoIndex struct {
	collection   *mongo.Collection
	dimension    int
	atlasEnabled bool
	indexName    string
}

type MongoIndexOptions struct {
	Dimension    int
	AtlasEnabled bool
	IndexName    string
}

func NewMongoIndex(db *mongo.Database, opts MongoIndexOptions) *MongoIndex {
	return &MongoIndex{
		collection:   db.Collection("pdf_vectors"),
		dimension:    opts.Dimension,
		atlasEnabled: opts.AtlasEnabled,
		indexName:    opts.IndexName,
	}
}

func (m *MongoIndex) Insert(ctx context.Context, chunks []Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	docs := make([]interface{}, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		if !scopeOf(ch).Valid() {
			return nil, ErrScopeRequired
		}
		if m.dimension != 0 && len(ch.Embedding) != m.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(ch.Embedding), m.dimension)
		}
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ids[i] = ch.ID
		docs[i] = ch
	}

	// Ordered write: a mid-batch failure is reported with the partial
	// count so the caller can treat the batch as indeterminate.
	res, err := m.collection.InsertMany(ctx, docs)
	if err != nil {
		inserted := 0
		if res != nil {
			inserted = len(res.InsertedIDs)
		}
		return nil, fmt.Errorf("%w: %d of %d chunks applied: %v", ErrIndexWrite, inserted, len(chunks), err)
	}
	return ids, nil
}

func (m *MongoIndex) Query(ctx context.Context, embedding []float32, k int, scope Scope) ([]Match, error) {
	if !scope.Valid() {
		return nil, ErrScopeRequired
	}
	if k <= 0 {
		k = 4
	}

	if m.atlasEnabled {
		return m.queryAtlas(ctx, embedding, k, scope)
	}
	return m.queryBruteForce(ctx, embedding, k, scope)
}

func (m *MongoIndex) queryAtlas(ctx context.Context, embedding []float32, k int, scope Scope) ([]Match, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: m.indexName},
			{Key: "path", Value: "embedding"},
			{Key: "queryVector", Value: embedding},
			{Key: "numCandidates", Value: k * 20},
			{Key: "limit", Value: k},
			{Key: "filter", Value: scopeFilter(scope)},
		}}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Chunk `bson:",inline"`
		Score float64 `bson:"score"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	matches := make([]Match, len(rows))
	for i, r := range rows {
		matches[i] = Match{Chunk: r.Chunk, Score: r.Score}
	}
	return matches, nil
}

// queryBruteForce loads the scope's chunks and scores them in process.
// Slower than Atlas search but exact, and fine at per-chat volumes.
func (m *MongoIndex) queryBruteForce(ctx context.Context, embedding []float32, k int, scope Scope) ([]Match, error) {
	cursor, err := m.collection.Find(ctx, scopeFilter(scope))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}

	matches := make([]Match, len(chunks))
	for i, ch := range chunks {
		matches[i] = Match{Chunk: ch, Score: CosineSimilarity(embedding, ch.Embedding)}
	}
	// Insertion order is preserved by the unsorted Find, so the stable
	// sort keeps score ties reproducible.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

func (m *MongoIndex) ListByScope(ctx context.Context, scope Scope, limit int) ([]Chunk, error) {
	if !scope.Valid() {
		return nil, ErrScopeRequired
	}

	opts := optionsWithLimit(limit)
	cursor, err := m.collection.Find(ctx, scopeFilter(scope), opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []Chunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (m *MongoIndex) DeleteByDocument(ctx context.Context, scope Scope, documentID string) error {
	if !scope.Valid() {
		return ErrScopeRequired
	}
	filter := scopeFilter(scope)
	filter = append(filter, bson.E{Key: "metadata.document_id", Value: documentID})
	_, err := m.collection.DeleteMany(ctx, filter)
	return err
}

func (m *MongoIndex) DeleteByScope(ctx context.Context, scope Scope) error {
	if !scope.Valid() {
		return ErrScopeRequired
	}
	_, err := m.collection.DeleteMany(ctx, scopeFilter(scope))
	return err
}

func optionsWithLimit(limit int) []*options.FindOptions {
	if limit <= 0 {
		return nil
	}
	return []*options.FindOptions{options.Find().SetLimit(int64(limit))}
}

func scopeFilter(scope Scope) bson.D {
	return bson.D{
		{Key: "metadata.user_id", Value: scope.UserID},
		{Key: "metadata.chat_id", Value: scope.ChatID},
	}
}
