//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFile(pipelineID string) *domain.File {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.File{
		ID:         uuid.NewString(),
		PipelineID: pipelineID,
		Name:       "refund.txt",
		Bucket:     "docs",
		ObjectKey:  "uploads/refund.txt",
		Status:     domain.FileStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestFileRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)
	f := newTestFile("42")
	require.NoError(t, repo.Create(ctx, f))

	got, err := repo.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, "42", got.PipelineID)
	assert.Equal(t, domain.FileStatusPending, got.Status)

	require.NoError(t, repo.UpdateStatus(ctx, f.ID, domain.FileStatusReady))
	got, err = repo.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStatusReady, got.Status)
}

func TestFileRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	err = repo.UpdateStatus(ctx, uuid.NewString(), domain.FileStatusError)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestFileRepository_ListByPipeline(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewFileRepository(pool)
	require.NoError(t, repo.Create(ctx, newTestFile("1")))
	require.NoError(t, repo.Create(ctx, newTestFile("1")))
	require.NoError(t, repo.Create(ctx, newTestFile("2")))
	require.NoError(t, repo.Create(ctx, newTestFile("")))

	files, err := repo.ListByPipeline(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
