package repository

import (
	"context"

	"github.com/cloo-solutions/ragline/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner runs indexing writes in one read-committed transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxRunner struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	return pgx.BeginTxFunc(ctx, r.pool, r.opts, func(tx pgx.Tx) error {
		return fn(txRepos{tx: tx})
	})
}

// txRepos hands out repositories bound to the same transaction.
type txRepos struct {
	tx pgx.Tx
}

func (r txRepos) Files() service.FileRepository         { return NewFileRepositoryWithTx(r.tx) }
func (r txRepos) Documents() service.DocumentRepository { return NewDocumentRepositoryWithTx(r.tx) }
func (r txRepos) Chunks() service.ChunkRepository       { return NewChunkRepositoryWithTx(r.tx) }
