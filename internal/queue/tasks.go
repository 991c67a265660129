package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"docchat-platform/internal/logger"
	"docchat-platform/services"
)

const (
	TaskIngestDocument = "document:ingest"
	TaskGenerateStudio = "studio:generate"
)

// ingestClaimTTL bounds how long a claim can outlive a crashed worker.
const ingestClaimTTL = 15 * time.Minute

type IngestPayload struct {
	UserID       string `json:"user_id"`
	ChatID       string `json:"chat_id"`
	DocumentID   string `json:"document_id"`
	SourceURL    string `json:"source_url"`
	OriginalName string `json:"original_name"`
}

type StudioPayload struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
	ToolID string `json:"tool_id"`
}

// Task creators
func NewIngestTask(p IngestPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewStudioTask(p StudioPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskGenerateStudio,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Task handlers
type TaskProcessor struct {
	ingestion *services.IngestionService
	studio    *services.StudioService
	rdb       *redis.Client
}

func NewTaskProcessor(ingestion *services.IngestionService, studio *services.StudioService, rdb *redis.Client) *TaskProcessor {
	return &TaskProcessor{
		ingestion: ingestion,
		studio:    studio,
		rdb:       rdb,
	}
}

// HandleIngest runs the ingestion pipeline for one document. A Redis
// claim key keeps duplicate deliveries from racing each other; the
// pipeline itself is delete-then-insert, so a claim expiring early
// costs wasted work, never duplicate chunks.
func (p *TaskProcessor) HandleIngest(ctx context.Context, t *asynq.Task) error {
	var payload IngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal ingest payload: %v: %w", err, asynq.SkipRetry)
	}

	claimKey := "ingest:claim:" + payload.DocumentID
	claimed, err := p.rdb.SetNX(ctx, claimKey, time.Now().Format(time.RFC3339), ingestClaimTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire ingest claim: %w", err)
	}
	if !claimed {
		logger.Info("ingest already claimed, skipping", "document_id", payload.DocumentID)
		return nil
	}

	err = p.ingestion.Run(ctx, services.IngestRequest{
		UserID:       payload.UserID,
		ChatID:       payload.ChatID,
		DocumentID:   payload.DocumentID,
		SourceURL:    payload.SourceURL,
		OriginalName: payload.OriginalName,
	})
	if err != nil {
		// Release the claim so a retry can run.
		p.rdb.Del(context.WithoutCancel(ctx), claimKey)
		if errors.Is(err, services.ErrEmptyDocument) || errors.Is(err, services.ErrUnsupportedFormat) {
			// Redelivery cannot fix an empty or unreadable document.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// HandleStudio generates one studio artifact for a chat session.
func (p *TaskProcessor) HandleStudio(ctx context.Context, t *asynq.Task) error {
	var payload StudioPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal studio payload: %v: %w", err, asynq.SkipRetry)
	}

	tool := services.ToolKind(payload.ToolID)
	if !services.KnownTool(payload.ToolID) {
		// Unknown tools still run through the fallback prompt, but log
		// so a frontend/backend drift is visible.
		logger.Warn("unknown studio tool requested", "tool", payload.ToolID, "chat_id", payload.ChatID)
	}

	_, err := p.studio.Generate(ctx, payload.UserID, payload.ChatID, tool)
	if err != nil {
		if errors.Is(err, services.ErrNoStudioContext) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
