package journal

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists records in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS deposit_journal (
    key TEXT PRIMARY KEY,
    account TEXT NOT NULL,
    amount NUMERIC(78, 0) NOT NULL,
    approval_tx TEXT NOT NULL DEFAULT '',
    deposit_tx TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    block_number BIGINT NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Get(ctx context.Context, key string) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
SELECT account, amount::TEXT, approval_tx, deposit_tx, status, block_number, error, created_at, updated_at
FROM deposit_journal
WHERE key = $1
`, key)

	var (
		rec    Record
		status string
		block  int64
	)
	err := row.Scan(&rec.Account, &rec.Amount, &rec.ApprovalTx, &rec.DepositTx, &status, &block, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Status = Status(status)
	rec.BlockNumber = uint64(block)
	return &rec, nil
}

func (p *PostgresStore) Save(ctx context.Context, key string, record Record) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO deposit_journal (key, account, amount, approval_tx, deposit_tx, status, block_number, error, created_at, updated_at)
VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (key) DO UPDATE
SET approval_tx = EXCLUDED.approval_tx,
    deposit_tx = EXCLUDED.deposit_tx,
    status = EXCLUDED.status,
    block_number = EXCLUDED.block_number,
    error = EXCLUDED.error,
    updated_at = EXCLUDED.updated_at
`, key, record.Account, record.Amount, record.ApprovalTx, record.DepositTx, string(record.Status),
		int64(record.BlockNumber), record.Error, record.CreatedAt, record.UpdatedAt)
	return err
}
