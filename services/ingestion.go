package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docchat-platform/internal/logger"
	"docchat-platform/internal/vector"
	"docchat-platform/models"
)

// ErrEmptyDocument is returned when parsing yields no usable pages.
// Fatal for the job; redelivery cannot fix an empty document.
var ErrEmptyDocument = errors.New("document yielded no pages")

// IngestStage names the pipeline stage a failure happened in.
type IngestStage string

const (
	StageDownloading IngestStage = "downloading"
	StageParsing     IngestStage = "parsing"
	StageSegmenting  IngestStage = "segmenting"
	StageEmbedding   IngestStage = "embedding"
	StageIndexing    IngestStage = "indexing"
	StageLinking     IngestStage = "linking"
)

// IngestError carries the stage together with the underlying error so
// the worker can report where a job died.
type IngestError struct {
	Stage IngestStage
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IngestRequest is the payload of one ingestion job. SourceURL is
// either an http(s) URL or a locally staged file path.
type IngestRequest struct {
	UserID       string
	ChatID       string
	DocumentID   string
	SourceURL    string
	OriginalName string
}

// PageExtractor parses a downloaded file into per-page text.
type PageExtractor interface {
	ExtractPages(path string) ([]PageText, error)
}

// DocumentLinker is the slice of document persistence the pipeline
// needs: status transitions and the chunk-reference link-back.
type DocumentLinker interface {
	SetStatus(ctx context.Context, documentID, status, errorMessage string) error
	LinkVectors(ctx context.Context, documentID string, vectorIDs []string) error
}

// IngestionService runs download -> parse -> segment -> embed -> index
// -> link as one unit of work. Retry happens only through task
// redelivery; the index insert is delete-then-insert per document so a
// redelivered job cannot duplicate chunks.
type IngestionService struct {
	httpClient   *http.Client
	extractor    PageExtractor
	segmenter    *Segmenter
	embedder     Embedder
	index        vector.Index
	documents    DocumentLinker
	tempDir      string
	embedWorkers int
}

type IngestionOptions struct {
	Extractor    PageExtractor
	Segmenter    *Segmenter
	Embedder     Embedder
	Index        vector.Index
	Documents    DocumentLinker
	TempDir      string
	EmbedWorkers int
	HTTPClient   *http.Client
}

func NewIngestionService(opts IngestionOptions) *IngestionService {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	workers := opts.EmbedWorkers
	if workers <= 0 {
		workers = 4
	}
	return &IngestionService{
		httpClient:   client,
		extractor:    opts.Extractor,
		segmenter:    opts.Segmenter,
		embedder:     opts.Embedder,
		index:        opts.Index,
		documents:    opts.Documents,
		tempDir:      tempDir,
		embedWorkers: workers,
	}
}

// Run executes the full pipeline for one document. On failure the
// document is marked failed and never advanced to ready.
func (s *IngestionService) Run(ctx context.Context, req IngestRequest) error {
	tracer := otel.Tracer("ingestion")
	ctx, span := tracer.Start(ctx, "ingest.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("ingest.document_id", req.DocumentID),
		attribute.String("ingest.chat_id", req.ChatID),
	)

	_ = s.documents.SetStatus(ctx, req.DocumentID, models.DocStatusProcessing, "")

	if err := s.run(ctx, req); err != nil {
		var stageErr *IngestError
		stage := IngestStage("unknown")
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		span.SetAttributes(
			attribute.Bool("ingest.error", true),
			attribute.String("ingest.failed_stage", string(stage)),
		)
		logger.Error("ingestion failed",
			"document_id", req.DocumentID,
			"stage", string(stage),
			"error", err,
		)
		// Status write must survive a canceled job context.
		_ = s.documents.SetStatus(context.WithoutCancel(ctx), req.DocumentID, models.DocStatusFailed, err.Error())
		return err
	}
	return nil
}

func (s *IngestionService) run(ctx context.Context, req IngestRequest) error {
	path, err := s.download(ctx, req)
	if err != nil {
		return &IngestError{Stage: StageDownloading, Err: err}
	}
	// The temp artifact is released on every exit path.
	defer os.Remove(path)

	pages, err := s.extractor.ExtractPages(path)
	if err != nil {
		return &IngestError{Stage: StageParsing, Err: err}
	}
	if len(pages) == 0 {
		return &IngestError{Stage: StageParsing, Err: ErrEmptyDocument}
	}

	segments := s.segmenter.Split(pages)
	if len(segments) == 0 {
		return &IngestError{Stage: StageSegmenting, Err: ErrEmptyDocument}
	}

	chunks, err := s.embedSegments(ctx, req, segments)
	if err != nil {
		return &IngestError{Stage: StageEmbedding, Err: err}
	}

	scope := vector.Scope{UserID: req.UserID, ChatID: req.ChatID}
	// Clear rows from any previous delivery of this document before
	// writing, so at-least-once delivery stays idempotent.
	if err := s.index.DeleteByDocument(ctx, scope, req.DocumentID); err != nil {
		return &IngestError{Stage: StageIndexing, Err: err}
	}
	ids, err := s.index.Insert(ctx, chunks)
	if err != nil {
		return &IngestError{Stage: StageIndexing, Err: err}
	}

	if err := s.documents.LinkVectors(ctx, req.DocumentID, ids); err != nil {
		return &IngestError{Stage: StageLinking, Err: err}
	}
	if err := s.documents.SetStatus(ctx, req.DocumentID, models.DocStatusReady, ""); err != nil {
		return &IngestError{Stage: StageLinking, Err: err}
	}

	logger.Info("ingestion complete",
		"document_id", req.DocumentID,
		"pages", len(pages),
		"chunks", len(chunks),
	)
	return nil
}

// download stages the source into a temp file. Local paths (files
// already staged by the upload handler) are copied so the deferred
// cleanup never touches the durable stored file.
func (s *IngestionService) download(ctx context.Context, req IngestRequest) (string, error) {
	dest := filepath.Join(s.tempDir, req.DocumentID+".pdf")

	if strings.HasPrefix(req.SourceURL, "http://") || strings.HasPrefix(req.SourceURL, "https://") {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.SourceURL, nil)
		if err != nil {
			return "", err
		}
		resp, err := s.httpClient.Do(httpReq)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("fetch returned status %s", resp.Status)
		}
		return dest, writeFile(dest, resp.Body)
	}

	src, err := os.Open(req.SourceURL)
	if err != nil {
		return "", err
	}
	defer src.Close()
	return dest, writeFile(dest, src)
}

func writeFile(dest string, r io.Reader) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

// embedSegments embeds all segments with bounded parallelism. Output
// order follows segment order regardless of completion order, and the
// first failure cancels the remaining calls and fails the whole batch.
func (s *IngestionService) embedSegments(ctx context.Context, req IngestRequest, segments []Segment) ([]vector.Chunk, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make([]vector.Chunk, len(segments))
	sem := make(chan struct{}, s.embedWorkers)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, seg := range segments {
		wg.Add(1)
		go func(i int, seg Segment) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			embedding, err := s.embedder.Embed(ctx, seg.Text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				return
			}
			chunks[i] = vector.Chunk{
				ID:        uuid.NewString(),
				Text:      seg.Text,
				Embedding: embedding,
				Metadata: vector.Metadata{
					UserID:       req.UserID,
					ChatID:       req.ChatID,
					DocumentID:   req.DocumentID,
					DocumentName: req.OriginalName,
					PageNumber:   seg.Page,
				},
			}
		}(i, seg)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return chunks, nil
}
