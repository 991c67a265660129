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

// ErrDocumentNotFound is returned when a document lookup matches nothing
// within the caller's scope.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore persists document records in the pdfs collection.
type DocumentStore struct {
	collection *mongo.Collection
}

func NewDocumentStore(db *mongo.Database) *DocumentStore {
	return &DocumentStore{collection: db.Collection("pdfs")}
}

func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) error {
	doc.UploadedAt = time.Now()
	if doc.Status == "" {
		doc.Status = models.DocStatusUploaded
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, userID, documentID string) (*models.Document, error) {
	var doc models.Document
	err := s.collection.FindOne(ctx, bson.M{"_id": documentID, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// SetStatus records a pipeline status transition. A ready transition
// also stamps processed_at; a failed one records the message.
func (s *DocumentStore) SetStatus(ctx context.Context, documentID, status, errorMessage string) error {
	set := bson.M{"status": status, "error_message": errorMessage}
	if status == models.DocStatusReady {
		now := time.Now()
		set["processed_at"] = now
	}
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": documentID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// LinkVectors replaces the document's chunk references wholesale. The
// ingestion pipeline rewrites the full set each run, so a redelivered
// job converges to the same record.
func (s *DocumentStore) LinkVectors(ctx context.Context, documentID string, vectorIDs []string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": documentID},
		bson.M{"$set": bson.M{"vector_ids": vectorIDs}},
	)
	if err != nil {
		return fmt.Errorf("link vectors: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentStore) ListByChat(ctx context.Context, userID, chatID string) ([]models.Document, error) {
	return s.list(ctx, bson.M{"user_id": userID, "chat_id": chatID})
}

func (s *DocumentStore) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.list(ctx, bson.M{"user_id": userID})
}

func (s *DocumentStore) list(ctx context.Context, filter bson.M) ([]models.Document, error) {
	cursor, err := s.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) DeleteByChat(ctx context.Context, userID, chatID string) error {
	_, err := s.collection.DeleteMany(ctx, bson.M{"user_id": userID, "chat_id": chatID})
	if err != nil {
		return fmt.Errorf("delete chat documents: %w", err)
	}
	return nil
}
