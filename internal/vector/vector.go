package vector

import (
	"context"
	"errors"
)

var (
	// ErrScopeRequired is returned when a read or write reaches the index
	// without a complete owner scope. Isolation between users and chats
	// relies entirely on this filter, so an unscoped call is a defect.
	ErrScopeRequired = errors.New("vector: user and chat scope is required")

	// ErrDimensionMismatch is returned when a vector does not match the
	// index dimensionality.
	ErrDimensionMismatch = errors.New("vector: embedding dimension mismatch")

	// ErrIndexWrite wraps a failed bulk insert. The batch may be
	// partially applied; the owning job must not advance its document
	// to ready.
	ErrIndexWrite = errors.New("vector: index write failed")
)

// Scope is the mandatory ownership filter applied to every index
// operation. Both fields must be set.
type Scope struct {
	UserID string
	ChatID string
}

func (s Scope) Valid() bool {
	return s.UserID != "" && s.ChatID != ""
}

// Metadata ties a chunk back to its owning user, chat and document.
type Metadata struct {
	UserID       string `bson:"user_id" json:"user_id"`
	ChatID       string `bson:"chat_id" json:"chat_id"`
	DocumentID   string `bson:"document_id" json:"document_id"`
	DocumentName string `bson:"document_name" json:"document_name"`
	PageNumber   int    `bson:"page_number" json:"page_number"`
}

// Chunk is one indexed span of document text with its embedding.
// Immutable once written; removed only in cascade with its document
// or chat.
type Chunk struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Text      string    `bson:"text" json:"text"`
	Embedding []float32 `bson:"embedding" json:"-"`
	Metadata  Metadata  `bson:"metadata" json:"metadata"`
}

// Match is a query hit with its similarity score.
type Match struct {
	Chunk
	Score float64
}

// Index stores chunk embeddings and answers scoped nearest-neighbor
// queries. Results are ordered by descending similarity; ties break by
// insertion order so identical inputs reproduce identical output.
type Index interface {
	// Insert writes a batch of chunks as one logical unit and returns
	// the record ids in input order.
	Insert(ctx context.Context, chunks []Chunk) ([]string, error)

	// Query returns at most k nearest neighbors matching the scope.
	Query(ctx context.Context, embedding []float32, k int, scope Scope) ([]Match, error)

	// ListByScope returns up to limit chunks for a scope in insertion
	// order, without similarity ranking.
	ListByScope(ctx context.Context, scope Scope, limit int) ([]Chunk, error)

	// DeleteByDocument removes all chunks of one document within a scope.
	// Ingestion calls this before re-inserting so job redelivery cannot
	// duplicate rows.
	DeleteByDocument(ctx context.Context, scope Scope, documentID string) error

	// DeleteByScope removes everything owned by a scope (chat deletion
	// cascade).
	DeleteByScope(ctx context.Context, scope Scope) error
}
