package service

import "context"

// TxRepositories exposes the repositories bound to one transaction. Replacing
// a document's chunks goes through these so that a reader never sees a
// document with a partial chunk set.
type TxRepositories interface {
	Files() FileRepository
	Documents() DocumentRepository
	Chunks() ChunkRepository
}

// TxRunner commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
