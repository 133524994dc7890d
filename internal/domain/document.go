package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// FileStatus represents the indexing state of an uploaded file
type FileStatus string

const (
	FileStatusPending FileStatus = "pending"
	FileStatusReady   FileStatus = "ready"
	FileStatusError   FileStatus = "error"
)

// MetaPipelineID is the document metadata key that scopes a document to a pipeline.
const MetaPipelineID = "pipeline_id"

// File is an uploaded object waiting for, or done with, indexing.
type File struct {
	ID         string
	PipelineID string
	Name       string
	Bucket     string
	ObjectKey  string
	Status     FileStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Document is created once per successfully fetched upload.
type Document struct {
	ID        string
	FileID    string
	Language  string
	Meta      map[string]any
	CreatedAt time.Time
}

// PipelineID returns the pipeline association stored in metadata, if any.
func (d *Document) PipelineID() string {
	if d == nil || d.Meta == nil {
		return ""
	}
	v, ok := d.Meta[MetaPipelineID]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// MergeMeta merges extra keys into the document metadata. Existing keys are overwritten.
func (d *Document) MergeMeta(extra map[string]any) {
	if len(extra) == 0 {
		return
	}
	if d.Meta == nil {
		d.Meta = make(map[string]any, len(extra))
	}
	for k, v := range extra {
		d.Meta[k] = v
	}
}

// TextChunk is a positioned slice of normalized document text.
type TextChunk struct {
	Position int
	Text     string
}

// Chunk belongs to exactly one document.
type Chunk struct {
	ID         string
	DocumentID string
	Position   int
	Text       string
	Hash       string
	CreatedAt  time.Time
}

// EmbeddingVector is the active vector for a (chunk, model) pair.
type EmbeddingVector struct {
	ChunkID   string
	Model     string
	Dim       int
	Vector    []float32
	CreatedAt time.Time
}

// ContentHash returns the deterministic digest used for dedup and change detection.
func ContentHash(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewChunk builds a chunk with its content hash filled in.
func NewChunk(id, documentID string, position int, text string, createdAt time.Time) *Chunk {
	return &Chunk{
		ID:         id,
		DocumentID: documentID,
		Position:   position,
		Text:       text,
		Hash:       ContentHash(text),
		CreatedAt:  createdAt,
	}
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}
	if c.Position < 0 {
		return fmt.Errorf("chunk Position cannot be negative")
	}
	if c.Hash != ContentHash(c.Text) {
		return fmt.Errorf("chunk Hash does not match its text")
	}
	return nil
}

// ValidateEmbeddingVector checks that the recorded dimensionality matches the vector.
func ValidateEmbeddingVector(v *EmbeddingVector) error {
	if v == nil {
		return fmt.Errorf("embedding vector cannot be nil")
	}
	if v.ChunkID == "" {
		return fmt.Errorf("embedding vector ChunkID is required")
	}
	if v.Model == "" {
		return fmt.Errorf("embedding vector Model is required")
	}
	if len(v.Vector) == 0 {
		return fmt.Errorf("embedding vector cannot be empty")
	}
	if v.Dim != len(v.Vector) {
		return fmt.Errorf("embedding vector Dim %d does not match length %d", v.Dim, len(v.Vector))
	}
	return nil
}
