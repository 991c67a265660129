package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docchat-platform/internal/logger"
	"docchat-platform/internal/vector"
	"docchat-platform/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatStore persists chat sessions and owns the cascade when a chat is
// deleted: documents, vectors, and studio artifacts of that session go
// with it.
type ChatStore struct {
	chats   *mongo.Collection
	pdfs    *mongo.Collection
	studio  *mongo.Collection
	vectors vector.Index
}

func NewChatStore(db *mongo.Database, vectors vector.Index) *ChatStore {
	return &ChatStore{
		chats:   db.Collection("chats"),
		pdfs:    db.Collection("pdfs"),
		studio:  db.Collection("studio"),
		vectors: vectors,
	}
}

func (s *ChatStore) Create(ctx context.Context, chat *models.Chat) error {
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	if chat.Messages == nil {
		chat.Messages = []models.ChatMessage{}
	}
	if _, err := s.chats.InsertOne(ctx, chat); err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

func (s *ChatStore) Get(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := s.chats.FindOne(ctx, bson.M{"_id": chatID, "user_id": userID}).Decode(&chat)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return &chat, nil
}

// List returns the user's chats newest-activity first, without message
// bodies so the sidebar stays cheap.
func (s *ChatStore) List(ctx context.Context, userID string) ([]models.Chat, error) {
	cursor, err := s.chats.Find(ctx, bson.M{"user_id": userID},
		options.Find().
			SetSort(bson.D{{Key: "updated_at", Value: -1}}).
			SetProjection(bson.M{"messages": 0}))
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer cursor.Close(ctx)

	chats := []models.Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	return chats, nil
}

func (s *ChatStore) Rename(ctx context.Context, userID, chatID, title string) error {
	res, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID, "user_id": userID},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (s *ChatStore) AddDocument(ctx context.Context, userID, chatID, documentID string) error {
	res, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID, "user_id": userID},
		bson.M{
			"$addToSet": bson.M{"pdf_ids": documentID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("add document to chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

// AppendMessages pushes a question/answer pair and bumps updated_at in
// one write.
func (s *ChatStore) AppendMessages(ctx context.Context, userID, chatID string, messages ...models.ChatMessage) error {
	res, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID, "user_id": userID},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": messages}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

// Delete removes the chat and everything keyed to its session: document
// records, vector chunks, and studio artifacts. The chat row goes first
// so a repeat call reports not found instead of re-running the cascade.
func (s *ChatStore) Delete(ctx context.Context, userID, chatID string) error {
	res, err := s.chats.DeleteOne(ctx, bson.M{"_id": chatID, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrChatNotFound
	}

	scope := vector.Scope{UserID: userID, ChatID: chatID}
	if err := s.vectors.DeleteByScope(ctx, scope); err != nil {
		// The chat is gone; orphaned chunks are unreachable through any
		// scoped read, so log and keep going.
		logger.Error("cascade vector delete failed", "chat_id", chatID, "error", err)
	}
	if _, err := s.pdfs.DeleteMany(ctx, bson.M{"user_id": userID, "chat_id": chatID}); err != nil {
		logger.Error("cascade document delete failed", "chat_id", chatID, "error", err)
	}
	if _, err := s.studio.DeleteMany(ctx, bson.M{"user_id": userID, "chat_id": chatID}); err != nil {
		logger.Error("cascade studio delete failed", "chat_id", chatID, "error", err)
	}
	return nil
}
