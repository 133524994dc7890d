package repository

import (
	"context"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RunRepository struct {
	db dbtx
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO runs (id, pipeline_id, kind, status, input, output, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, nullableString(run.PipelineID), run.Kind, run.Status, run.Input, run.Output, run.StartedAt, run.FinishedAt,
	)
	return err
}

// ListByPipeline returns the most recent runs first. Input and Output are decoded JSON.
func (r *RunRepository) ListByPipeline(ctx context.Context, pipelineID string, limit int) ([]*domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, pipeline_id, kind, status, input, output, started_at, finished_at
		 FROM runs WHERE pipeline_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		pipelineID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		var run domain.Run
		var pid *string
		var input, output map[string]any
		if err := rows.Scan(&run.ID, &pid, &run.Kind, &run.Status, &input, &output, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		if pid != nil {
			run.PipelineID = *pid
		}
		run.Input = input
		run.Output = output
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
