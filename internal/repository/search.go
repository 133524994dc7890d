package repository

import (
	"context"

	"github.com/cloo-solutions/ragline/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SearchRepository ranks stored chunks against a query vector with pgvector.
// Vectors are unit-normalized, so the negated inner-product distance is the
// cosine similarity.
type SearchRepository struct {
	db    dbtx
	model string
}

func NewSearchRepository(pool *pgxpool.Pool, model string) *SearchRepository {
	return &SearchRepository{db: pool, model: model}
}

// TopK implements service.VectorIndex. Chunks without a vector of the query's
// dimension for the repository's model rank last with a nil score.
func (r *SearchRepository) TopK(ctx context.Context, query []float32, scope string, k int) ([]service.Candidate, error) {
	if k <= 0 {
		k = 8
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.text, -(e.vec <#> $1) AS score
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 LEFT JOIN embeddings e ON e.chunk_id = c.id AND e.model = $2 AND e.dim = $5
		 WHERE $3 = '' OR d.meta->>'pipeline_id' = $3
		 ORDER BY e.vec <#> $1 ASC NULLS LAST, c.id ASC
		 LIMIT $4`,
		pgvector.NewVector(query), r.model, scope, k, len(query),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []service.Candidate
	for rows.Next() {
		var c service.Candidate
		if err := rows.Scan(&c.ChunkID, &c.Text, &c.Score); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
