package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/ratelimit"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

const defaultRateLimitTxRetries = 10

// errInsertRaced means another transaction created the record between our read and our insert.
var errInsertRaced = errors.New("rate limit record created concurrently")

// RateLimitStore keeps chat quota counters in the rate_limits table.
type RateLimitStore struct {
	db         *DB
	maxRetries int
}

// NewRateLimitStore creates a SQL-backed counter store.
func NewRateLimitStore(db *DB) *RateLimitStore {
	return &RateLimitStore{db: db, maxRetries: defaultRateLimitTxRetries}
}

// Update runs read, fn and write in one transaction. The row is locked with SELECT ... FOR UPDATE
// on postgres and mysql; sqlite serializes through its single connection.
// Transactions that lose a race on a fresh key or hit a deadlock are retried from the read.
func (s *RateLimitStore) Update(ctx context.Context, key string, fn ratelimit.UpdateFunc) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err = s.update(ctx, key, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("%w: %d attempts on %q: %v", ratelimit.ErrContention, s.maxRetries, key, err)
}

func (s *RateLimitStore) update(ctx context.Context, key string, fn ratelimit.UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rate limit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT request_count, window_start FROM rate_limits WHERE client_key = ?`
	if s.db.dialect != DialectSQLite {
		query += ` FOR UPDATE`
	}

	var current *models.RateLimitRecord
	rec := models.RateLimitRecord{Key: key}
	switch err := tx.QueryRowContext(ctx, query, key).Scan(&rec.Count, &rec.WindowStart); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read rate limit record: %w", err)
	default:
		current = &rec
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	now := time.Now().UTC()
	if current == nil {
		res, err := tx.ExecContext(ctx,
			s.db.insertIgnoreSQL("rate_limits", "client_key", []string{"client_key", "request_count", "window_start", "updated_at"}),
			key, next.Count, next.WindowStart, now,
		)
		if err != nil {
			return fmt.Errorf("insert rate limit record: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errInsertRaced
		}
	} else {
		_, err := tx.ExecContext(ctx, `
			UPDATE rate_limits SET request_count = ?, window_start = ?, updated_at = ?
			WHERE client_key = ?
		`, next.Count, next.WindowStart, now, key)
		if err != nil {
			return fmt.Errorf("update rate limit record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rate limit tx: %w", err)
	}
	return nil
}

// isRetryable reports whether the transaction failed only because of concurrent writers.
func isRetryable(err error) bool {
	if errors.Is(err, errInsertRaced) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "23505": // serialization_failure, deadlock_detected, unique_violation
			return true
		}
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1213, 1205, 1062: // deadlock, lock wait timeout, duplicate entry
			return true
		}
	}
	return false
}

// Get returns the record for key, or nil when none exists.
func (s *RateLimitStore) Get(ctx context.Context, key string) (*models.RateLimitRecord, error) {
	rec := &models.RateLimitRecord{Key: key}
	err := s.db.QueryRowContext(ctx, `
		SELECT request_count, window_start FROM rate_limits WHERE client_key = ?
	`, key).Scan(&rec.Count, &rec.WindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit record: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, most recently opened windows first.
func (s *RateLimitStore) List(ctx context.Context, limit int) ([]models.RateLimitRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT client_key, request_count, window_start FROM rate_limits
		ORDER BY window_start DESC, client_key
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list rate limit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.RateLimitRecord
	for rows.Next() {
		var rec models.RateLimitRecord
		if err := rows.Scan(&rec.Key, &rec.Count, &rec.WindowStart); err != nil {
			return nil, fmt.Errorf("scan rate limit record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limit records: %w", err)
	}
	return out, nil
}

// Delete removes the record for key, giving that client a fresh quota. Reports whether a record existed.
func (s *RateLimitStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE client_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete rate limit record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rate limit record: %w", err)
	}
	return n > 0, nil
}

// PruneBefore deletes records whose window started before cutoff.
func (s *RateLimitStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE window_start < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune rate limit records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rate limit records: %w", err)
	}
	return n, nil
}
