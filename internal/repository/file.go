package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FileRepository struct {
	db dbtx
}

func NewFileRepository(pool *pgxpool.Pool) *FileRepository {
	return &FileRepository{db: pool}
}

func NewFileRepositoryWithTx(tx pgx.Tx) *FileRepository {
	return &FileRepository{db: tx}
}

const fileColumns = `id, pipeline_id, name, bucket, object_key, status, created_at, updated_at`

func (r *FileRepository) Create(ctx context.Context, f *domain.File) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO files (`+fileColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, nullableString(f.PipelineID), f.Name, f.Bucket, f.ObjectKey, f.Status, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.File, error) {
	f, err := scanFile(r.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *FileRepository) ListByPipeline(ctx context.Context, pipelineID string) ([]*domain.File, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+fileColumns+` FROM files WHERE pipeline_id = $1 ORDER BY created_at ASC`,
		pipelineID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*domain.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *FileRepository) UpdateStatus(ctx context.Context, id string, status domain.FileStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE files SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}

// LockForUpdate takes the row lock on the file until the surrounding
// transaction ends. Outside a transaction the lock is released at once.
func (r *FileRepository) LockForUpdate(ctx context.Context, id string) error {
	var locked int
	err := r.db.QueryRow(ctx, `SELECT 1 FROM files WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrFileNotFound
	}
	return err
}

func scanFile(row pgx.Row) (*domain.File, error) {
	var f domain.File
	var pipelineID *string
	if err := row.Scan(&f.ID, &pipelineID, &f.Name, &f.Bucket, &f.ObjectKey, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if pipelineID != nil {
		f.PipelineID = *pipelineID
	}
	return &f, nil
}
