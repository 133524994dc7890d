package repository

import (
	"context"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence of chunks and their embedding vectors.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Create(ctx context.Context, c *domain.Chunk) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chunks (id, document_id, pos, text, hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.DocumentID, c.Position, c.Text, c.Hash, c.CreatedAt,
	)
	return err
}

// UpsertEmbedding stores the vector for (chunk, model), replacing any previous one.
func (r *ChunkRepository) UpsertEmbedding(ctx context.Context, v *domain.EmbeddingVector) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO embeddings (chunk_id, model, dim, vec, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (chunk_id, model) DO UPDATE
		 SET dim = EXCLUDED.dim, vec = EXCLUDED.vec, created_at = EXCLUDED.created_at`,
		v.ChunkID, v.Model, v.Dim, pgvector.NewVector(v.Vector), v.CreatedAt,
	)
	return err
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, pos, text, hash, created_at
		 FROM chunks WHERE document_id = $1 ORDER BY pos ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Text, &c.Hash, &c.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) GetEmbedding(ctx context.Context, chunkID, model string) (*domain.EmbeddingVector, error) {
	var v domain.EmbeddingVector
	var vec pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT chunk_id, model, dim, vec, created_at FROM embeddings WHERE chunk_id = $1 AND model = $2`,
		chunkID, model,
	).Scan(&v.ChunkID, &v.Model, &v.Dim, &vec, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.Vector = vec.Slice()
	return &v, nil
}
