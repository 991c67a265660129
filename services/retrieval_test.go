package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docchat-platform/internal/vector"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func seedRetrievalIndex(t *testing.T, index vector.Index) {
	t.Helper()
	chunks := []vector.Chunk{
		{
			ID: "c1", Text: "close match", Embedding: []float32{1, 0, 0},
			Metadata: vector.Metadata{UserID: "user-1", ChatID: "chat-1", DocumentID: "doc-1", DocumentName: "handbook.pdf", PageNumber: 3},
		},
		{
			ID: "c2", Text: "weak match", Embedding: []float32{0, 1, 0},
			Metadata: vector.Metadata{UserID: "user-1", ChatID: "chat-1", DocumentID: "doc-1", DocumentName: "handbook.pdf", PageNumber: 7},
		},
		{
			ID: "c3", Text: "other session", Embedding: []float32{1, 0, 0},
			Metadata: vector.Metadata{UserID: "user-2", ChatID: "chat-9", DocumentID: "doc-2", DocumentName: "secret.pdf", PageNumber: 1},
		},
	}
	if _, err := index.Insert(context.Background(), chunks); err != nil {
		t.Fatalf("seed index: %v", err)
	}
}

func TestRetrieveAssemblesContextAndCitations(t *testing.T) {
	index := vector.NewMemoryIndex(0)
	seedRetrievalIndex(t, index)

	r := NewRetriever(&fixedEmbedder{vec: []float32{1, 0, 0}}, index, 4)
	scope := vector.Scope{UserID: "user-1", ChatID: "chat-1"}

	got, err := r.Retrieve(context.Background(), "what does the handbook say", scope)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got.Citations) != len(got.Matches) {
		t.Fatalf("citations = %d, matches = %d", len(got.Citations), len(got.Matches))
	}
	if got.Citations[0].ID != "c1" || got.Citations[0].PageNumber != 3 {
		t.Fatalf("top citation = %+v", got.Citations[0])
	}
	if got.Citations[0].DocumentName != "handbook.pdf" {
		t.Fatalf("citation name = %q", got.Citations[0].DocumentName)
	}
	if !strings.HasPrefix(got.Context, "close match") {
		t.Fatalf("context not rank-ordered: %q", got.Context)
	}
	if strings.Contains(got.Context, "other session") {
		t.Fatalf("context leaked across scopes: %q", got.Context)
	}
}

func TestRetrieveEmptyScope(t *testing.T) {
	index := vector.NewMemoryIndex(0)
	seedRetrievalIndex(t, index)

	r := NewRetriever(&fixedEmbedder{vec: []float32{1, 0, 0}}, index, 4)
	scope := vector.Scope{UserID: "user-1", ChatID: "chat-without-docs"}

	got, err := r.Retrieve(context.Background(), "anything", scope)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.Context != "" {
		t.Fatalf("context = %q, want empty", got.Context)
	}
	if len(got.Citations) != 0 {
		t.Fatalf("citations = %d, want 0", len(got.Citations))
	}
}

func TestRetrieveCitationFallsBackToDocumentID(t *testing.T) {
	index := vector.NewMemoryIndex(0)
	if _, err := index.Insert(context.Background(), []vector.Chunk{{
		ID: "c1", Text: "unnamed", Embedding: []float32{1, 0, 0},
		Metadata: vector.Metadata{UserID: "u", ChatID: "c", DocumentID: "doc-42"},
	}}); err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(&fixedEmbedder{vec: []float32{1, 0, 0}}, index, 4)
	got, err := r.Retrieve(context.Background(), "q", vector.Scope{UserID: "u", ChatID: "c"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.Citations[0].DocumentName != "doc-42" {
		t.Fatalf("citation name = %q, want doc-42", got.Citations[0].DocumentName)
	}
}

func TestRetrieveEmbedderFailure(t *testing.T) {
	wantErr := errors.New("embedding unavailable")
	r := NewRetriever(&fixedEmbedder{err: wantErr}, vector.NewMemoryIndex(0), 4)

	_, err := r.Retrieve(context.Background(), "q", vector.Scope{UserID: "u", ChatID: "c"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestRetrieveHonorsTopK(t *testing.T) {
	index := vector.NewMemoryIndex(0)
	chunks := make([]vector.Chunk, 10)
	for i := range chunks {
		chunks[i] = vector.Chunk{
			Text: "chunk", Embedding: []float32{1, float32(i) * 0.01, 0},
			Metadata: vector.Metadata{UserID: "u", ChatID: "c", DocumentID: "d"},
		}
	}
	if _, err := index.Insert(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}

	r := NewRetriever(&fixedEmbedder{vec: []float32{1, 0, 0}}, index, 4)
	got, err := r.Retrieve(context.Background(), "q", vector.Scope{UserID: "u", ChatID: "c"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got.Matches) != 4 {
		t.Fatalf("matches = %d, want 4", len(got.Matches))
	}
}
