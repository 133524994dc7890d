package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	meta := d.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, file_id, lang, meta, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.FileID, d.Language, meta, d.CreatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx,
		`SELECT id, file_id, lang, meta, created_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.FileID, &d.Language, &d.Meta, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &d, nil
}

// MergeMeta merges extra keys into the stored metadata.
func (r *DocumentRepository) MergeMeta(ctx context.Context, id string, extra map[string]any) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET meta = meta || $1::jsonb WHERE id = $2`,
		extra, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// DeleteByFile removes earlier documents of a file. Chunks and embeddings cascade.
func (r *DocumentRepository) DeleteByFile(ctx context.Context, fileID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM documents WHERE file_id = $1`, fileID)
	return err
}
