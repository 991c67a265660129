package models

import "time"

// Document processing status. Only the ingestion job advances a document
// to ready; every failure path leaves it in failed.
const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusFailed     = "failed"
)

// Document is an uploaded PDF owned by one user and one chat. VectorIDs
// are filled in by the ingestion job after the bulk index insert.
type Document struct {
	ID           string     `bson:"_id" json:"id"`
	Name         string     `bson:"name" json:"name"`
	StoragePath  string     `bson:"storage_path" json:"storage_path"`
	Size         int64      `bson:"size" json:"size"`
	Pages        int        `bson:"pages" json:"pages"`
	UserID       string     `bson:"user_id" json:"user_id"`
	ChatID       string     `bson:"chat_id" json:"chat_id"`
	Status       string     `bson:"status" json:"status"`
	ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	VectorIDs    []string   `bson:"vector_ids,omitempty" json:"vector_ids,omitempty"`
	UploadedAt   time.Time  `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// UploadResponse is returned per file on upload; processing continues
// in the background worker.
type UploadResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Pages   int    `json:"pages,omitempty"`
	Message string `json:"message,omitempty"`
}
