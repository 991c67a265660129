package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	if err := createIndexes(ctx, client, cfg.DBName); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	chatIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	}
	if _, err := db.Collection("chats").Indexes().CreateMany(ctx, chatIdx); err != nil {
		return err
	}

	pdfIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "chat_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := db.Collection("pdfs").Indexes().CreateMany(ctx, pdfIdx); err != nil {
		return err
	}

	// Scope filter runs on every vector read and write, keep it indexed.
	vectorIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "metadata.user_id", Value: 1}, {Key: "metadata.chat_id", Value: 1}}},
		{Keys: bson.D{{Key: "metadata.document_id", Value: 1}}},
	}
	if _, err := db.Collection("pdf_vectors").Indexes().CreateMany(ctx, vectorIdx); err != nil {
		return err
	}

	studioIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "tool_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := db.Collection("studio").Indexes().CreateMany(ctx, studioIdx); err != nil {
		return err
	}

	return nil
}
