package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat-platform/models"
)

var ErrArtifactNotFound = errors.New("studio artifact not found")

// StudioStore persists generated studio artifacts. One artifact per
// chat, user, and tool; regeneration overwrites in place.
type StudioStore struct {
	collection *mongo.Collection
}

func NewStudioStore(db *mongo.Database) *StudioStore {
	return &StudioStore{collection: db.Collection("studio")}
}

func (s *StudioStore) Upsert(ctx context.Context, artifact *models.StudioArtifact) error {
	now := time.Now()
	filter := bson.M{
		"chat_id": artifact.ChatID,
		"user_id": artifact.UserID,
		"tool_id": artifact.ToolID,
	}
	update := bson.M{
		"$set": bson.M{
			"content":    artifact.Content,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"chat_id":    artifact.ChatID,
			"user_id":    artifact.UserID,
			"tool_id":    artifact.ToolID,
			"created_at": now,
		},
	}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert studio artifact: %w", err)
	}
	return nil
}

func (s *StudioStore) List(ctx context.Context, userID, chatID string) ([]models.StudioArtifact, error) {
	cursor, err := s.collection.Find(ctx,
		bson.M{"user_id": userID, "chat_id": chatID},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list studio artifacts: %w", err)
	}
	defer cursor.Close(ctx)

	artifacts := []models.StudioArtifact{}
	if err := cursor.All(ctx, &artifacts); err != nil {
		return nil, fmt.Errorf("decode studio artifacts: %w", err)
	}
	return artifacts, nil
}

func (s *StudioStore) Delete(ctx context.Context, userID, chatID, toolID string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{
		"user_id": userID,
		"chat_id": chatID,
		"tool_id": toolID,
	})
	if err != nil {
		return fmt.Errorf("delete studio artifact: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrArtifactNotFound
	}
	return nil
}
