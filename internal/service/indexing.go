package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/logger"
	"github.com/cloo-solutions/ragline/internal/telemetry"
	"github.com/google/uuid"
)

// FileRepository persists uploaded file rows.
type FileRepository interface {
	Create(ctx context.Context, f *domain.File) error
	GetByID(ctx context.Context, id string) (*domain.File, error)
	ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.File, error)
	UpdateStatus(ctx context.Context, id string, status domain.FileStatus) error
	// LockForUpdate serialises writers of one file inside a transaction.
	LockForUpdate(ctx context.Context, id string) error
}

// DocumentRepository persists documents.
type DocumentRepository interface {
	Create(ctx context.Context, d *domain.Document) error
	DeleteByFile(ctx context.Context, fileID string) error
}

// ChunkRepository persists chunks and their embedding vectors.
type ChunkRepository interface {
	Create(ctx context.Context, c *domain.Chunk) error
	UpsertEmbedding(ctx context.Context, v *domain.EmbeddingVector) error
}

// ObjectFetcher reads uploaded object bytes.
type ObjectFetcher interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// ChunkEmbedder embeds a batch of chunk texts with its default model.
type ChunkEmbedder interface {
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)
	Model() string
}

// IndexEnqueuer hands files to the indexing worker.
type IndexEnqueuer interface {
	Enqueue(ctx context.Context, fileID string) (*domain.IndexJob, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IndexReport summarizes one indexed file.
type IndexReport struct {
	FileID     string   `json:"file_id"`
	DocumentID string   `json:"document_id"`
	Language   string   `json:"language"`
	Chunks     int      `json:"chunks"`
	Embedded   int      `json:"embedded"`
	Warnings   []string `json:"warnings,omitempty"`
}

// IndexService turns an uploaded file into a document with chunks and embeddings.
type IndexService struct {
	files          FileRepository
	tx             TxRunner
	storage        ObjectFetcher
	embedder       ChunkEmbedder
	queue          IndexEnqueuer
	chunkCfg       ChunkConfig
	customPatterns []string
	uuidGen        UUIDGenerator
	log            *logger.Logger
}

type IndexOption func(*IndexService)

func WithChunkConfig(cfg ChunkConfig) IndexOption {
	return func(s *IndexService) { s.chunkCfg = cfg }
}

// WithFilterPatterns sets the custom patterns removed during preprocessing.
func WithFilterPatterns(patterns []string) IndexOption {
	return func(s *IndexService) { s.customPatterns = patterns }
}

func WithIndexQueue(q IndexEnqueuer) IndexOption {
	return func(s *IndexService) { s.queue = q }
}

func WithIndexLogger(log *logger.Logger) IndexOption {
	return func(s *IndexService) { s.log = log }
}

func WithUUIDGenerator(gen UUIDGenerator) IndexOption {
	return func(s *IndexService) { s.uuidGen = gen }
}

func NewIndexService(files FileRepository, tx TxRunner, storage ObjectFetcher, embedder ChunkEmbedder, opts ...IndexOption) *IndexService {
	s := &IndexService{
		files:    files,
		tx:       tx,
		storage:  storage,
		embedder: embedder,
		chunkCfg: DefaultChunkConfig(),
		uuidGen:  &DefaultUUIDGenerator{},
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterFileInput describes an object already stored in the bucket.
type RegisterFileInput struct {
	PipelineID string
	Name       string
	Bucket     string
	ObjectKey  string
}

// RegisterFile records a pending file and queues it for indexing.
func (s *IndexService) RegisterFile(ctx context.Context, in RegisterFileInput) (*domain.File, error) {
	if strings.TrimSpace(in.Bucket) == "" || strings.TrimSpace(in.ObjectKey) == "" {
		return nil, domain.NewValidationError("bucket and object_key are required")
	}
	if s.queue == nil {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "indexing queue not configured")
	}

	now := time.Now().UTC()
	name := in.Name
	if name == "" {
		name = in.ObjectKey
	}
	file := &domain.File{
		ID:         s.uuidGen.NewString(),
		PipelineID: in.PipelineID,
		Name:       name,
		Bucket:     in.Bucket,
		ObjectKey:  in.ObjectKey,
		Status:     domain.FileStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, file.ID); err != nil {
		s.markError(ctx, file.ID, err)
		file.Status = domain.FileStatusError
		return nil, fmt.Errorf("enqueue file %s: %w", file.ID, err)
	}
	return file, nil
}

// GetFile returns a file with its current indexing status.
func (s *IndexService) GetFile(ctx context.Context, fileID string) (*domain.File, error) {
	return s.files.GetByID(ctx, fileID)
}

// IndexFile indexes one file end to end. On failure nothing is persisted and the
// file is marked as errored.
func (s *IndexService) IndexFile(ctx context.Context, fileID string) (*IndexReport, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "IndexService.IndexFile", telemetry.SpanAttributes{
		PipelineID: file.PipelineID,
		FileID:     file.ID,
		Model:      s.embedder.Model(),
		Operation:  "index",
	})
	defer span.End()

	report, err := s.index(ctx, file)
	if err != nil {
		span.SetError(err)
		s.markError(ctx, file.ID, err)
		return nil, err
	}

	s.log.Info("file indexed",
		"file_id", file.ID,
		"document_id", report.DocumentID,
		"chunks", report.Chunks,
		"embedded", report.Embedded,
	)
	return report, nil
}

func (s *IndexService) index(ctx context.Context, file *domain.File) (*IndexReport, error) {
	if s.storage == nil {
		return nil, domain.ErrStorageNotEnabled
	}

	raw, err := s.storage.GetObject(ctx, file.Bucket, file.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("fetch object %s/%s: %w", file.Bucket, file.ObjectKey, err)
	}
	if !utf8.Valid(raw) {
		return nil, domain.ErrInvalidUTF8
	}

	pre, err := Preprocess(string(raw), s.customPatterns)
	if err != nil {
		return nil, err
	}
	chunks := ChunkText(pre.Text, s.chunkCfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts, "")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &IndexReport{
		FileID:   file.ID,
		Language: pre.Language,
		Chunks:   len(chunks),
		Embedded: min(len(chunks), len(vectors)),
		Warnings: []string{},
	}
	if len(vectors) != len(chunks) {
		msg := fmt.Sprintf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
		report.Warnings = append(report.Warnings, msg)
		s.log.Warn("embedding count mismatch",
			"file_id", file.ID,
			"chunks", len(chunks),
			"vectors", len(vectors),
		)
	}

	now := time.Now().UTC()
	model := s.embedder.Model()
	doc := &domain.Document{
		ID:        s.uuidGen.NewString(),
		FileID:    file.ID,
		Language:  pre.Language,
		Meta:      map[string]any{"language": pre.Language},
		CreatedAt: now,
	}
	if file.PipelineID != "" {
		doc.MergeMeta(map[string]any{domain.MetaPipelineID: file.PipelineID})
	}
	report.DocumentID = doc.ID

	err = s.tx.WithTx(ctx, func(repos TxRepositories) error {
		// A second job for the same file waits here until this one commits,
		// then replaces the document this one wrote.
		if err := repos.Files().LockForUpdate(ctx, file.ID); err != nil {
			return fmt.Errorf("lock file: %w", err)
		}
		if err := repos.Documents().DeleteByFile(ctx, file.ID); err != nil {
			return fmt.Errorf("delete previous documents: %w", err)
		}
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		for i := 0; i < report.Embedded; i++ {
			chunk := domain.NewChunk(s.uuidGen.NewString(), doc.ID, chunks[i].Position, chunks[i].Text, now)
			if err := repos.Chunks().Create(ctx, chunk); err != nil {
				return fmt.Errorf("create chunk %d: %w", chunk.Position, err)
			}
			vec := &domain.EmbeddingVector{
				ChunkID:   chunk.ID,
				Model:     model,
				Dim:       len(vectors[i]),
				Vector:    vectors[i],
				CreatedAt: now,
			}
			if err := domain.ValidateEmbeddingVector(vec); err != nil {
				return domain.NewEmbeddingError("invalid embedding vector", err)
			}
			if err := repos.Chunks().UpsertEmbedding(ctx, vec); err != nil {
				return fmt.Errorf("store embedding for chunk %d: %w", chunk.Position, err)
			}
		}
		return repos.Files().UpdateStatus(ctx, file.ID, domain.FileStatusReady)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ReindexPipeline resets every file of a pipeline to pending and queues it again.
func (s *IndexService) ReindexPipeline(ctx context.Context, pipelineID string) ([]*domain.IndexJob, error) {
	if strings.TrimSpace(pipelineID) == "" {
		return nil, domain.NewValidationError("pipeline id is required")
	}
	if s.queue == nil {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "indexing queue not configured")
	}

	files, err := s.files.ListByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline files: %w", err)
	}

	jobs := make([]*domain.IndexJob, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}
		if err := s.files.UpdateStatus(ctx, f.ID, domain.FileStatusPending); err != nil {
			return jobs, fmt.Errorf("reset file %s: %w", f.ID, err)
		}
		job, err := s.queue.Enqueue(ctx, f.ID)
		if err != nil {
			return jobs, fmt.Errorf("enqueue file %s: %w", f.ID, err)
		}
		jobs = append(jobs, job)
	}

	s.log.Info("pipeline reindex queued", "pipeline_id", pipelineID, "files", len(jobs))
	return jobs, nil
}

func (s *IndexService) markError(ctx context.Context, fileID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.files.UpdateStatus(ctx, fileID, domain.FileStatusError); err != nil && !errors.Is(err, domain.ErrFileNotFound) {
		s.log.Error("failed to mark file as errored", "file_id", fileID, "error", err)
	}
	s.log.Error("indexing failed", "file_id", fileID, "error", cause)
}
