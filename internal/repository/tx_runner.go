package repository

import (
	"context"

	"github.com/glossa-works/glossa/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Sources() service.SourceRepositoryInterface {
	return NewSourceRepositoryWithTx(r.tx)
}

func (r *txRepos) Segments() service.SegmentRepositoryInterface {
	return NewSegmentRepositoryWithTx(r.tx)
}

func (r *txRepos) Links() service.LinkRepositoryInterface {
	return NewLinkRepositoryWithTx(r.tx)
}
