package service

import "context"

// testTxRepos hands the same mocks to code running inside a transaction.
type testTxRepos struct {
	files     FileRepository
	documents DocumentRepository
	chunks    ChunkRepository
}

func (r *testTxRepos) Files() FileRepository         { return r.files }
func (r *testTxRepos) Documents() DocumentRepository { return r.documents }
func (r *testTxRepos) Chunks() ChunkRepository       { return r.chunks }

// testTxRunner runs fn directly. commitErr, when set, is returned after fn
// succeeds to simulate a failed commit.
type testTxRunner struct {
	repos     TxRepositories
	commitErr error
	called    bool
}

func (r *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	r.called = true
	if err := fn(r.repos); err != nil {
		return err
	}
	return r.commitErr
}
