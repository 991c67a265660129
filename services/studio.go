package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docchat-platform/internal/logger"
	"docchat-platform/internal/vector"
	"docchat-platform/models"
)

// ErrNoStudioContext means the chat has no indexed content to generate
// from. Fatal for the job; retrying cannot conjure context.
var ErrNoStudioContext = errors.New("no indexed context for studio generation")

// ArtifactGenerator produces a JSON artifact for one tool from raw
// context text.
type ArtifactGenerator interface {
	Generate(ctx context.Context, tool ToolKind, contextText string) (map[string]any, error)
}

// ArtifactWriter is the persistence slice the studio pipeline needs.
type ArtifactWriter interface {
	Upsert(ctx context.Context, artifact *models.StudioArtifact) error
}

// StudioService assembles session context from the vector index and
// runs a studio tool over it, storing the result.
type StudioService struct {
	index        vector.Index
	agent        ArtifactGenerator
	artifacts    ArtifactWriter
	contextLimit int
}

func NewStudioService(index vector.Index, agent ArtifactGenerator, artifacts ArtifactWriter, contextLimit int) *StudioService {
	if contextLimit <= 0 {
		contextLimit = 20
	}
	return &StudioService{
		index:        index,
		agent:        agent,
		artifacts:    artifacts,
		contextLimit: contextLimit,
	}
}

// Generate collects up to contextLimit chunks for the session, runs the
// tool, and upserts the artifact keyed by chat, user, and tool.
func (s *StudioService) Generate(ctx context.Context, userID, chatID string, tool ToolKind) (*models.StudioArtifact, error) {
	scope := vector.Scope{UserID: userID, ChatID: chatID}
	chunks, err := s.index.ListByScope(ctx, scope, s.contextLimit)
	if err != nil {
		return nil, fmt.Errorf("collect studio context: %w", err)
	}

	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}
	if len(parts) == 0 {
		return nil, ErrNoStudioContext
	}

	content, err := s.agent.Generate(ctx, tool, strings.Join(parts, "\n\n"))
	if err != nil {
		return nil, err
	}

	artifact := &models.StudioArtifact{
		ChatID:  chatID,
		UserID:  userID,
		ToolID:  string(tool),
		Content: content,
	}
	if err := s.artifacts.Upsert(ctx, artifact); err != nil {
		return nil, err
	}

	logger.Info("studio artifact generated",
		"chat_id", chatID,
		"tool", string(tool),
		"context_chunks", len(parts),
	)
	return artifact, nil
}
