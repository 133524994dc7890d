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

func TestIndexJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	files := NewFileRepository(pool)
	jobs := NewIndexJobRepository(pool)

	f := newTestFile("42")
	require.NoError(t, files.Create(ctx, f))

	job := domain.NewIndexJob(uuid.NewString(), f.ID, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, jobs.Create(ctx, job))

	claimed, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.IndexJobStatusProcessing, claimed[0].Status)

	again, err := jobs.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, jobs.Requeue(ctx, job.ID, "transient"))
	got, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexJobStatusPending, got.Status)
	assert.Equal(t, int32(1), got.Retries)
	assert.Equal(t, "transient", got.Error)

	require.NoError(t, jobs.UpdateStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""))
	got, err = jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexJobStatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	assert.Empty(t, got.Error)
}

func TestIndexJobRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	jobs := NewIndexJobRepository(pool)

	_, err := jobs.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrIndexJobNotFound)

	err = jobs.UpdateStatus(ctx, uuid.NewString(), domain.IndexJobStatusFailed, "x")
	assert.ErrorIs(t, err, domain.ErrIndexJobNotFound)
}
