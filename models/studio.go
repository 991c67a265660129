package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StudioArtifact is a generated content object for one (chat, tool) pair.
// Regeneration overwrites the previous content (upsert semantics).
type StudioArtifact struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID    string             `bson:"chat_id" json:"chat_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	ToolID    string             `bson:"tool_id" json:"tool_id"`
	Content   map[string]any     `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
