package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createSamplesTableSQL = `CREATE TABLE IF NOT EXISTS p2p_samples (
        seq            BIGINT      PRIMARY KEY,
        sampled_at     TIMESTAMPTZ NOT NULL,
        hour_of_day    SMALLINT    NOT NULL,
        day_of_week    SMALLINT    NOT NULL,
        buy_price      NUMERIC     NOT NULL,
        sell_price     NUMERIC     NOT NULL,
        spread         NUMERIC     NOT NULL,
        spread_pct     NUMERIC     NOT NULL,
        buyer_name     TEXT        NOT NULL DEFAULT '',
        seller_name    TEXT        NOT NULL DEFAULT '',
        min_amount     BIGINT      NOT NULL,
        bank           TEXT        NOT NULL DEFAULT ''
    );`

	deleteSamplesSQL = `DELETE FROM p2p_samples;`

	insertSampleSQL = `INSERT INTO p2p_samples (
        seq,
        sampled_at,
        hour_of_day,
        day_of_week,
        buy_price,
        sell_price,
        spread,
        spread_pct,
        buyer_name,
        seller_name,
        min_amount,
        bank
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
    );`

	selectSampleColumns = `SELECT
        sampled_at,
        hour_of_day,
        day_of_week,
        buy_price::text,
        sell_price::text,
        spread::text,
        spread_pct::text,
        buyer_name,
        seller_name,
        min_amount,
        bank
    FROM p2p_samples`

	listAllSamplesSQL = selectSampleColumns + `
    ORDER BY seq;`

	listRecentSamplesSQL = selectSampleColumns + `
    ORDER BY seq DESC
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM p2p_samples;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store persists sample snapshots in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that PostgreSQL answers.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the samples table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSamplesTableSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// LoadAll returns every stored sample in arrival order.
func (s *Store) LoadAll(ctx context.Context) ([]Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAllSamplesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// SaveAll replaces the stored snapshot inside one transaction.
func (s *Store) SaveAll(ctx context.Context, samples []Sample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	if _, err := tx.Exec(ctx, deleteSamplesSQL); err != nil {
		return fmt.Errorf("clear samples: %w", err)
	}

	batch := &pgx.Batch{}
	for i, sample := range samples {
		batch.Queue(insertSampleSQL,
			int64(i),
			sample.Timestamp,
			int16(sample.Hour),
			int16(sample.Weekday),
			sample.BuyPrice.String(),
			sample.SellPrice.String(),
			sample.Spread.String(),
			sample.SpreadPercent.String(),
			sample.BuyerName,
			sample.SellerName,
			sample.MinAmount,
			sample.Bank,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert samples: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// ListRecentSamples lists the most recent samples, newest first.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

func collectSamples(rows pgx.Rows, capacity int) ([]Sample, error) {
	samples := make([]Sample, 0, capacity)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanSample(rows pgx.Rows) (Sample, error) {
	var (
		sampledAt    time.Time
		hour         int16
		weekday      int16
		buyStr       string
		sellStr      string
		spreadStr    string
		spreadPctStr string
		sample       Sample
	)

	if err := rows.Scan(
		&sampledAt,
		&hour,
		&weekday,
		&buyStr,
		&sellStr,
		&spreadStr,
		&spreadPctStr,
		&sample.BuyerName,
		&sample.SellerName,
		&sample.MinAmount,
		&sample.Bank,
	); err != nil {
		return Sample{}, err
	}

	var err error
	if sample.BuyPrice, err = decimal.NewFromString(buyStr); err != nil {
		return Sample{}, fmt.Errorf("parse buy price: %w", err)
	}
	if sample.SellPrice, err = decimal.NewFromString(sellStr); err != nil {
		return Sample{}, fmt.Errorf("parse sell price: %w", err)
	}
	if sample.Spread, err = decimal.NewFromString(spreadStr); err != nil {
		return Sample{}, fmt.Errorf("parse spread: %w", err)
	}
	if sample.SpreadPercent, err = decimal.NewFromString(spreadPctStr); err != nil {
		return Sample{}, fmt.Errorf("parse spread pct: %w", err)
	}

	sample.Timestamp = sampledAt
	sample.Hour = int(hour)
	sample.Weekday = time.Weekday(weekday)
	return sample, nil
}

var (
	_ Gateway        = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
	_ Pinger         = (*Store)(nil)
)
