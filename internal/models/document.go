// Package models defines core data structures for chunks, ingestion results, and queries.
package models

import (
	"errors"
	"time"
)

// ErrValidation marks a request rejected before any processing.
var ErrValidation = errors.New("validation failed")

// ValidationError is a rejected request carrying a message fit for the caller.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Chunk is one stored segment of a document's text. Chunks are immutable once
// stored; a document exists only as the set of chunks sharing a Source.
type Chunk struct {
	ID        string    `json:"id" db:"id"`
	Seq       int64     `json:"seq" db:"seq"`
	Source    string    `json:"source" db:"source"`
	Content   string    `json:"content" db:"content"`
	Category  string    `json:"category" db:"category"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Upload is one file submitted for ingestion.
type Upload struct {
	Filename string
	Content  []byte
}

// IngestionResult describes one successfully ingested file. It is returned to
// the caller and never persisted.
type IngestionResult struct {
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	TextLength    int    `json:"text_length"`
}

// UploadResponse is the response for a multi-file upload.
type UploadResponse struct {
	Message        string             `json:"message"`
	Documents      []*IngestionResult `json:"documents"`
	TotalDocuments int                `json:"total_documents"`
}

// SingleUploadResponse is the response for a single-file upload.
type SingleUploadResponse struct {
	Message       string `json:"message"`
	ChunksCreated int    `json:"chunks_created"`
	TextLength    int    `json:"text_length"`
}

// DocumentList is the response for listing stored documents.
type DocumentList struct {
	Documents  []string `json:"documents"`
	TotalCount int      `json:"total_count"`
}
