package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFileRepo struct {
	mock.Mock
}

func (m *MockFileRepo) Create(ctx context.Context, f *domain.File) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *MockFileRepo) GetByID(ctx context.Context, id string) (*domain.File, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.File), args.Error(1)
}

func (m *MockFileRepo) ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.File, error) {
	args := m.Called(ctx, pipelineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.File), args.Error(1)
}

func (m *MockFileRepo) UpdateStatus(ctx context.Context, id string, status domain.FileStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockFileRepo) LockForUpdate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepo) DeleteByFile(ctx context.Context, fileID string) error {
	args := m.Called(ctx, fileID)
	return args.Error(0)
}

type MockChunkRepo struct {
	mock.Mock
}

func (m *MockChunkRepo) Create(ctx context.Context, c *domain.Chunk) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockChunkRepo) UpsertEmbedding(ctx context.Context, v *domain.EmbeddingVector) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

type MockObjectFetcher struct {
	mock.Mock
}

func (m *MockObjectFetcher) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockChunkEmbedder struct {
	mock.Mock
}

func (m *MockChunkEmbedder) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	args := m.Called(ctx, texts, model)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockChunkEmbedder) Model() string {
	return "gte-small"
}

type MockIndexQueue struct {
	mock.Mock
}

func (m *MockIndexQueue) Enqueue(ctx context.Context, fileID string) (*domain.IndexJob, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IndexJob), args.Error(1)
}

type seqUUIDGen struct {
	n int
}

func (g *seqUUIDGen) NewString() string {
	g.n++
	return "id-" + string(rune('0'+g.n))
}

type indexFixture struct {
	files    *MockFileRepo
	docs     *MockDocumentRepo
	chunks   *MockChunkRepo
	storage  *MockObjectFetcher
	embedder *MockChunkEmbedder
	queue    *MockIndexQueue
	tx       *testTxRunner
	svc      *IndexService
}

func newIndexFixture(opts ...IndexOption) *indexFixture {
	f := &indexFixture{
		files:    new(MockFileRepo),
		docs:     new(MockDocumentRepo),
		chunks:   new(MockChunkRepo),
		storage:  new(MockObjectFetcher),
		embedder: new(MockChunkEmbedder),
		queue:    new(MockIndexQueue),
	}
	f.tx = &testTxRunner{repos: &testTxRepos{files: f.files, documents: f.docs, chunks: f.chunks}}
	opts = append([]IndexOption{WithIndexQueue(f.queue), WithUUIDGenerator(&seqUUIDGen{})}, opts...)
	f.svc = NewIndexService(f.files, f.tx, f.storage, f.embedder, opts...)
	return f
}

func testFile() *domain.File {
	return &domain.File{
		ID:         "file-1",
		PipelineID: "42",
		Bucket:     "docs",
		ObjectKey:  "refund.txt",
		Status:     domain.FileStatusPending,
	}
}

func TestIndexService_IndexFile_Success(t *testing.T) {
	f := newIndexFixture(WithChunkConfig(ChunkConfig{WindowSize: 3, Overlap: 1}))
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, "docs", "refund.txt").Return([]byte("a b c d e"), nil)
	f.embedder.On("Embed", mock.Anything, []string{"a b c", "c d e"}, "").
		Return([][]float32{{1, 0}, {0, 1}}, nil)
	f.files.On("LockForUpdate", mock.Anything, "file-1").Return(nil)
	f.docs.On("DeleteByFile", mock.Anything, "file-1").Return(nil)
	f.docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.FileID == "file-1" && d.Language == "en" && d.PipelineID() == "42"
	})).Return(nil)
	f.chunks.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Chunk) bool {
		return domain.ValidateChunk(c) == nil
	})).Return(nil).Twice()
	f.chunks.On("UpsertEmbedding", mock.Anything, mock.MatchedBy(func(v *domain.EmbeddingVector) bool {
		return v.Model == "gte-small" && v.Dim == 2
	})).Return(nil).Twice()
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusReady).Return(nil)

	report, err := f.svc.IndexFile(ctx, "file-1")

	require.NoError(t, err)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 2, report.Embedded)
	assert.Equal(t, "en", report.Language)
	assert.Empty(t, report.Warnings)
	assert.True(t, f.tx.called)
	f.files.AssertExpectations(t)
	f.docs.AssertExpectations(t)
	f.chunks.AssertExpectations(t)
}

func TestIndexService_IndexFile_CommitFailure(t *testing.T) {
	f := newIndexFixture(WithChunkConfig(ChunkConfig{WindowSize: 3, Overlap: 1}))
	f.tx.commitErr = errors.New("could not serialize access")
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, mock.Anything, mock.Anything).Return([]byte("a b"), nil)
	f.embedder.On("Embed", mock.Anything, []string{"a b"}, "").Return([][]float32{{1, 0}}, nil)
	f.files.On("LockForUpdate", mock.Anything, "file-1").Return(nil)
	f.docs.On("DeleteByFile", mock.Anything, "file-1").Return(nil)
	f.docs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.chunks.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.chunks.On("UpsertEmbedding", mock.Anything, mock.Anything).Return(nil)
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusReady).Return(nil)

	report, err := f.svc.IndexFile(ctx, "file-1")

	assert.Nil(t, report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not serialize access")
}

func TestIndexService_IndexFile_LocksFileBeforeReplacingDocument(t *testing.T) {
	f := newIndexFixture(WithChunkConfig(ChunkConfig{WindowSize: 3, Overlap: 1}))
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, mock.Anything, mock.Anything).Return([]byte("a b"), nil)
	f.embedder.On("Embed", mock.Anything, []string{"a b"}, "").Return([][]float32{{1, 0}}, nil)
	f.files.On("LockForUpdate", mock.Anything, "file-1").Return(errors.New("lock timeout"))
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusError).Return(nil)

	report, err := f.svc.IndexFile(ctx, "file-1")

	assert.Nil(t, report)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock file")
	f.docs.AssertNotCalled(t, "DeleteByFile", mock.Anything, mock.Anything)
	f.chunks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIndexService_IndexFile_VectorCountMismatch(t *testing.T) {
	f := newIndexFixture(WithChunkConfig(ChunkConfig{WindowSize: 2, Overlap: 0}))
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, mock.Anything, mock.Anything).Return([]byte("a b c d e f"), nil)
	f.embedder.On("Embed", mock.Anything, []string{"a b", "c d", "e f"}, "").
		Return([][]float32{{1}, {1}}, nil)
	f.files.On("LockForUpdate", mock.Anything, mock.Anything).Return(nil)
	f.docs.On("DeleteByFile", mock.Anything, mock.Anything).Return(nil)
	f.docs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.chunks.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()
	f.chunks.On("UpsertEmbedding", mock.Anything, mock.Anything).Return(nil).Twice()
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusReady).Return(nil)

	report, err := f.svc.IndexFile(ctx, "file-1")

	require.NoError(t, err)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 2, report.Embedded)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "3 chunks, 2 vectors")
	f.chunks.AssertNumberOfCalls(t, "Create", 2)
}

func TestIndexService_IndexFile_EmptyDocument(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, mock.Anything, mock.Anything).Return([]byte("   \n "), nil)
	f.embedder.On("Embed", mock.Anything, []string{}, "").Return([][]float32{}, nil)
	f.files.On("LockForUpdate", mock.Anything, mock.Anything).Return(nil)
	f.docs.On("DeleteByFile", mock.Anything, mock.Anything).Return(nil)
	f.docs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusReady).Return(nil)

	report, err := f.svc.IndexFile(ctx, "file-1")

	require.NoError(t, err)
	assert.Equal(t, 0, report.Chunks)
	f.chunks.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestIndexService_IndexFile_EmbeddingFailureMarksError(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, mock.Anything, mock.Anything).Return([]byte("some text"), nil)
	f.embedder.On("Embed", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.NewEmbeddingError("embedding service unreachable", nil))
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusError).Return(nil)

	report, err := f.svc.IndexFile(ctx, "file-1")

	assert.Nil(t, report)
	require.Error(t, err)
	assert.True(t, domain.IsEmbeddingError(err))
	assert.False(t, f.tx.called)
	f.files.AssertExpectations(t)
}

func TestIndexService_IndexFile_InvalidUTF8(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, mock.Anything, mock.Anything).Return([]byte{0xff, 0xfe, 0x00}, nil)
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusError).Return(nil)

	_, err := f.svc.IndexFile(ctx, "file-1")

	assert.ErrorIs(t, err, domain.ErrInvalidUTF8)
	f.embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexService_IndexFile_TransactionFailureMarksError(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, mock.Anything, mock.Anything).Return([]byte("hello world"), nil)
	f.embedder.On("Embed", mock.Anything, mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
	f.files.On("LockForUpdate", mock.Anything, mock.Anything).Return(nil)
	f.docs.On("DeleteByFile", mock.Anything, mock.Anything).Return(nil)
	f.docs.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.chunks.On("Create", mock.Anything, mock.Anything).Return(errors.New("unique violation"))
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusError).Return(nil)

	_, err := f.svc.IndexFile(ctx, "file-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique violation")
	f.files.AssertNotCalled(t, "UpdateStatus", mock.Anything, "file-1", domain.FileStatusReady)
	f.files.AssertCalled(t, "UpdateStatus", mock.Anything, "file-1", domain.FileStatusError)
}

func TestIndexService_IndexFile_NotFound(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	f.files.On("GetByID", ctx, "missing").Return(nil, domain.ErrFileNotFound)

	_, err := f.svc.IndexFile(ctx, "missing")

	assert.ErrorIs(t, err, domain.ErrFileNotFound)
	f.files.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexService_IndexFile_MasksPIIBeforeChunking(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	f.files.On("GetByID", ctx, "file-1").Return(testFile(), nil)
	f.storage.On("GetObject", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte("문의는 help@corp.com 으로"), nil)
	f.embedder.On("Embed", mock.Anything, []string{"문의는 [이메일] 으로"}, "").Return([][]float32{{1}}, nil)
	f.files.On("LockForUpdate", mock.Anything, mock.Anything).Return(nil)
	f.docs.On("DeleteByFile", mock.Anything, mock.Anything).Return(nil)
	f.docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
		return d.Language == "ko"
	})).Return(nil)
	f.chunks.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Chunk) bool {
		return !strings.Contains(c.Text, "@")
	})).Return(nil)
	f.chunks.On("UpsertEmbedding", mock.Anything, mock.Anything).Return(nil)
	f.files.On("UpdateStatus", mock.Anything, "file-1", domain.FileStatusReady).Return(nil)

	report, err := f.svc.IndexFile(ctx, "file-1")

	require.NoError(t, err)
	assert.Equal(t, "ko", report.Language)
	f.embedder.AssertExpectations(t)
}

func TestIndexService_RegisterFile(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	f.files.On("Create", ctx, mock.MatchedBy(func(file *domain.File) bool {
		return file.Status == domain.FileStatusPending && file.Name == "refund.txt" && file.PipelineID == "42"
	})).Return(nil)
	f.queue.On("Enqueue", ctx, "id-1").Return(&domain.IndexJob{ID: "job-1", FileID: "id-1"}, nil)

	file, err := f.svc.RegisterFile(ctx, RegisterFileInput{PipelineID: "42", Bucket: "docs", ObjectKey: "refund.txt"})

	require.NoError(t, err)
	assert.Equal(t, "id-1", file.ID)
	f.files.AssertExpectations(t)
	f.queue.AssertExpectations(t)
}

func TestIndexService_RegisterFile_Validation(t *testing.T) {
	f := newIndexFixture()

	_, err := f.svc.RegisterFile(context.Background(), RegisterFileInput{Bucket: "docs"})

	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}

func TestIndexService_RegisterFile_EnqueueFailure(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	f.files.On("Create", ctx, mock.Anything).Return(nil)
	f.queue.On("Enqueue", ctx, "id-1").Return(nil, errors.New("redis down"))
	f.files.On("UpdateStatus", mock.Anything, "id-1", domain.FileStatusError).Return(nil)

	_, err := f.svc.RegisterFile(ctx, RegisterFileInput{Bucket: "docs", ObjectKey: "a.txt"})

	require.Error(t, err)
	f.files.AssertExpectations(t)
}

func TestIndexService_ReindexPipeline(t *testing.T) {
	f := newIndexFixture()
	ctx := context.Background()

	files := []*domain.File{{ID: "f1"}, {ID: "f2"}}
	f.files.On("ListByPipeline", ctx, "42").Return(files, nil)
	f.files.On("UpdateStatus", ctx, "f1", domain.FileStatusPending).Return(nil)
	f.files.On("UpdateStatus", ctx, "f2", domain.FileStatusPending).Return(nil)
	f.queue.On("Enqueue", ctx, "f1").Return(&domain.IndexJob{ID: "j1", FileID: "f1"}, nil)
	f.queue.On("Enqueue", ctx, "f2").Return(&domain.IndexJob{ID: "j2", FileID: "f2"}, nil)

	jobs, err := f.svc.ReindexPipeline(ctx, "42")

	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	f.files.AssertExpectations(t)
	f.queue.AssertExpectations(t)
}

func TestIndexService_ReindexPipeline_RequiresID(t *testing.T) {
	f := newIndexFixture()

	_, err := f.svc.ReindexPipeline(context.Background(), " ")

	assert.True(t, domain.IsValidationError(err))
}
