package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"docchat-platform/internal/vector"
	"docchat-platform/models"
)

type fakeExtractor struct {
	pages []PageText
	err   error
}

func (f *fakeExtractor) ExtractPages(path string) ([]PageText, error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, fmt.Errorf("staged file missing: %v", statErr)
	}
	return f.pages, f.err
}

type fakeIngestEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeIngestEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return nil, errors.New("embedding unavailable")
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

type fakeLinker struct {
	mu        sync.Mutex
	statuses  []string
	lastError string
	vectorIDs []string
}

func (f *fakeLinker) SetStatus(ctx context.Context, documentID, status, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	f.lastError = errorMessage
	return nil
}

func (f *fakeLinker) LinkVectors(ctx context.Context, documentID string, vectorIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorIDs = vectorIDs
	return nil
}

func (f *fakeLinker) finalStatus() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

func newTestIngestion(t *testing.T, extractor PageExtractor, embedder Embedder, index vector.Index, linker DocumentLinker) *IngestionService {
	t.Helper()
	return NewIngestionService(IngestionOptions{
		Extractor:    extractor,
		Segmenter:    NewSegmenter(1000, 200),
		Embedder:     embedder,
		Index:        index,
		Documents:    linker,
		TempDir:      t.TempDir(),
		EmbedWorkers: 2,
	})
}

func TestIngestionRunSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake body"))
	}))
	defer srv.Close()

	extractor := &fakeExtractor{pages: []PageText{
		{Number: 1, Text: strings.Repeat("a", 1500)},
		{Number: 2, Text: strings.Repeat("b", 300)},
	}}
	embedder := &fakeIngestEmbedder{}
	index := vector.NewMemoryIndex(0)
	linker := &fakeLinker{}

	svc := newTestIngestion(t, extractor, embedder, index, linker)
	req := IngestRequest{
		UserID:       "user-1",
		ChatID:       "chat-1",
		DocumentID:   "doc-1",
		SourceURL:    srv.URL + "/doc.pdf",
		OriginalName: "doc.pdf",
	}
	if err := svc.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := linker.finalStatus(); got != models.DocStatusReady {
		t.Fatalf("final status = %q, want %q", got, models.DocStatusReady)
	}
	// 1500 chars -> 2 chunks, 300 chars -> 1 chunk.
	if len(linker.vectorIDs) != 3 {
		t.Fatalf("linked %d vector ids, want 3", len(linker.vectorIDs))
	}
	if index.Len() != 3 {
		t.Fatalf("index holds %d chunks, want 3", index.Len())
	}

	scope := vector.Scope{UserID: "user-1", ChatID: "chat-1"}
	stored, err := index.ListByScope(context.Background(), scope, 0)
	if err != nil {
		t.Fatalf("ListByScope: %v", err)
	}
	for _, c := range stored {
		if c.Metadata.DocumentID != "doc-1" || c.Metadata.DocumentName != "doc.pdf" {
			t.Fatalf("chunk metadata = %+v", c.Metadata)
		}
		if c.Metadata.PageNumber == 0 {
			t.Fatalf("chunk missing page number: %+v", c.Metadata)
		}
	}
}

func TestIngestionLocalFileSource(t *testing.T) {
	dir := t.TempDir()
	staged := filepath.Join(dir, "upload.pdf")
	if err := os.WriteFile(staged, []byte("stored upload"), 0o644); err != nil {
		t.Fatal(err)
	}

	extractor := &fakeExtractor{pages: []PageText{{Number: 1, Text: "short page"}}}
	linker := &fakeLinker{}
	svc := newTestIngestion(t, extractor, &fakeIngestEmbedder{}, vector.NewMemoryIndex(0), linker)

	err := svc.Run(context.Background(), IngestRequest{
		UserID:     "user-1",
		ChatID:     "chat-1",
		DocumentID: "doc-local",
		SourceURL:  staged,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The staged upload is durable storage; only the temp copy goes away.
	if _, err := os.Stat(staged); err != nil {
		t.Fatalf("staged file was removed: %v", err)
	}
}

func TestIngestionEmptyDocumentFails(t *testing.T) {
	extractor := &fakeExtractor{pages: nil}
	linker := &fakeLinker{}
	svc := newTestIngestion(t, extractor, &fakeIngestEmbedder{}, vector.NewMemoryIndex(0), linker)

	err := svc.Run(context.Background(), IngestRequest{
		UserID: "u", ChatID: "c", DocumentID: "doc-empty", SourceURL: localSource(t, "empty"),
	})
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
	var stageErr *IngestError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageParsing {
		t.Fatalf("stage = %v, want %s", err, StageParsing)
	}
	if got := linker.finalStatus(); got != models.DocStatusFailed {
		t.Fatalf("final status = %q, want %q", got, models.DocStatusFailed)
	}
	if linker.lastError == "" {
		t.Fatal("failed status should carry an error message")
	}
}

func TestIngestionEmbedFailureNeverReady(t *testing.T) {
	extractor := &fakeExtractor{pages: []PageText{{Number: 1, Text: strings.Repeat("x", 2500)}}}
	linker := &fakeLinker{}
	index := vector.NewMemoryIndex(0)
	svc := newTestIngestion(t, extractor, &fakeIngestEmbedder{fail: true}, index, linker)

	err := svc.Run(context.Background(), IngestRequest{
		UserID: "u", ChatID: "c", DocumentID: "doc-fail", SourceURL: localSource(t, "body"),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var stageErr *IngestError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageEmbedding {
		t.Fatalf("stage = %v, want %s", err, StageEmbedding)
	}
	if got := linker.finalStatus(); got != models.DocStatusFailed {
		t.Fatalf("final status = %q, want %q", got, models.DocStatusFailed)
	}
	if index.Len() != 0 {
		t.Fatalf("partial chunks written: %d", index.Len())
	}
	if linker.vectorIDs != nil {
		t.Fatal("vectors linked despite failure")
	}
}

func TestIngestionTempFileCleanup(t *testing.T) {
	tempDir := t.TempDir()
	extractor := &fakeExtractor{pages: []PageText{{Number: 1, Text: "one page"}}}
	svc := NewIngestionService(IngestionOptions{
		Extractor:    extractor,
		Segmenter:    NewSegmenter(1000, 200),
		Embedder:     &fakeIngestEmbedder{},
		Index:        vector.NewMemoryIndex(0),
		Documents:    &fakeLinker{},
		TempDir:      tempDir,
		EmbedWorkers: 2,
	})

	if err := svc.Run(context.Background(), IngestRequest{
		UserID: "u", ChatID: "c", DocumentID: "doc-tmp", SourceURL: localSource(t, "body"),
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp dir not cleaned, %d entries remain", len(entries))
	}
}

func TestIngestionRedeliveryIsIdempotent(t *testing.T) {
	extractor := &fakeExtractor{pages: []PageText{{Number: 1, Text: strings.Repeat("y", 1500)}}}
	linker := &fakeLinker{}
	index := vector.NewMemoryIndex(0)
	svc := newTestIngestion(t, extractor, &fakeIngestEmbedder{}, index, linker)

	req := IngestRequest{
		UserID: "u", ChatID: "c", DocumentID: "doc-redel", SourceURL: localSource(t, "body"),
	}
	if err := svc.Run(context.Background(), req); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := index.Len()

	req.SourceURL = localSource(t, "body")
	if err := svc.Run(context.Background(), req); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if index.Len() != first {
		t.Fatalf("redelivery changed chunk count: %d -> %d", first, index.Len())
	}
}

func localSource(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.pdf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
