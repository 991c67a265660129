package services

import (
	"context"
	"strings"

	"docchat-platform/internal/vector"
	"docchat-platform/models"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrievedContext is the assembled input for an agent call. Citations
// always has exactly one entry per retrieved chunk, in rank order.
// Context is empty when nothing was retrieved; callers must pass that
// fact on rather than let the model invent sources.
type RetrievedContext struct {
	Context   string
	Citations []models.Citation
	Matches   []vector.Match
}

// Retriever answers "what indexed text is relevant to this question"
// within one user/chat scope.
type Retriever struct {
	embedder Embedder
	index    vector.Index
	topK     int
}

func NewRetriever(embedder Embedder, index vector.Index, topK int) *Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{embedder: embedder, index: index, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, question string, scope vector.Scope) (*RetrievedContext, error) {
	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := r.index.Query(ctx, embedding, r.topK, scope)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(matches))
	citations := make([]models.Citation, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
		name := m.Metadata.DocumentName
		if name == "" {
			name = m.Metadata.DocumentID
		}
		citations[i] = models.Citation{
			ID:           m.ID,
			DocumentName: name,
			PageNumber:   m.Metadata.PageNumber,
			SectionTitle: "Context from PDF",
		}
	}

	return &RetrievedContext{
		Context:   strings.Join(texts, "\n\n"),
		Citations: citations,
		Matches:   matches,
	}, nil
}
