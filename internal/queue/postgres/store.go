package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/sloreti/chime/internal/queue"
)

// Expected schema:
//
//	CREATE TABLE queue_items (
//	    id            UUID PRIMARY KEY,
//	    user_id       TEXT NOT NULL,
//	    payload       JSONB NOT NULL,
//	    scheduled_for TIMESTAMPTZ NOT NULL,
//	    priority      TEXT NOT NULL DEFAULT 'normal',
//	    retry_count   INT NOT NULL DEFAULT 0,
//	    max_retries   INT NOT NULL DEFAULT 3,
//	    status        TEXT NOT NULL DEFAULT 'pending',
//	    error_message TEXT,
//	    metadata      JSONB,
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    last_attempt  TIMESTAMPTZ
//	);
//	CREATE INDEX idx_queue_items_due ON queue_items (status, scheduled_for);
//	CREATE INDEX idx_queue_items_user ON queue_items (user_id, status);

const itemColumns = `
	id, user_id, payload, scheduled_for, priority,
	retry_count, max_retries, status, error_message, metadata,
	created_at, last_attempt
`

// priorityRank encodes the symbolic level ordering for batch selection.
// The ordinal is sort-time only and never stored.
const priorityRank = `
	CASE priority
		WHEN 'urgent' THEN 4
		WHEN 'high' THEN 3
		WHEN 'low' THEN 1
		ELSE 2
	END
`

// Store is the pgx-backed queue.Store. Claim uses a conditional UPDATE so
// concurrent dispatchers sharing one database never double-claim an item.
type Store struct {
	db     *DB
	logger *zap.Logger
}

// NewStore creates a postgres-backed queue store.
func NewStore(db *DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

func (s *Store) Create(ctx context.Context, item *queue.Item) error {
	query := `
		INSERT INTO queue_items (
			id, user_id, payload, scheduled_for, priority,
			retry_count, max_retries, status, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := s.db.Pool().Exec(
		ctx,
		query,
		item.ID,
		item.UserID,
		item.Payload,
		item.ScheduledFor,
		item.Priority,
		item.RetryCount,
		item.MaxRetries,
		item.Status,
		item.Metadata,
		item.CreatedAt,
	)
	if err != nil {
		s.logger.Error("failed to create queue item",
			zap.Error(err),
			zap.String("item_id", item.ID.String()),
		)
		return fmt.Errorf("insert queue item: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*queue.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE id = $1`

	item, err := scanItem(s.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query queue item: %w", err)
	}
	return item, nil
}

func (s *Store) Update(ctx context.Context, item *queue.Item) error {
	query := `
		UPDATE queue_items
		SET scheduled_for = $1, retry_count = $2, status = $3,
		    error_message = $4, last_attempt = $5
		WHERE id = $6
	`

	result, err := s.db.Pool().Exec(ctx, query,
		item.ScheduledFor,
		item.RetryCount,
		item.Status,
		item.ErrorMessage,
		item.LastAttempt,
		item.ID,
	)
	if err != nil {
		s.logger.Error("failed to update queue item",
			zap.Error(err),
			zap.String("item_id", item.ID.String()),
		)
		return fmt.Errorf("update queue item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]*queue.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM queue_items
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY ` + priorityRank + ` DESC, scheduled_for ASC
	`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (s *Store) ListPendingByUser(ctx context.Context, userID string) ([]*queue.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM queue_items
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY scheduled_for ASC
	`

	rows, err := s.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query pending items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (s *Store) Claim(ctx context.Context, id uuid.UUID, at time.Time) (*queue.Item, error) {
	query := `
		UPDATE queue_items
		SET status = 'processing', last_attempt = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + itemColumns

	item, err := scanItem(s.db.Pool().QueryRow(ctx, query, id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a lost race from a missing row.
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, queue.ErrNotFound) {
			return nil, queue.ErrNotFound
		}
		return nil, queue.ErrNotClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("claim queue item: %w", err)
	}
	return item, nil
}

func (s *Store) CountByStatus(ctx context.Context) (map[queue.Status]int, error) {
	query := `SELECT status, COUNT(*) FROM queue_items GROUP BY status`

	rows, err := s.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count queue items: %w", err)
	}
	defer rows.Close()

	counts := make(map[queue.Status]int)
	for rows.Next() {
		var status queue.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return counts, nil
}

func (s *Store) PurgeTerminal(ctx context.Context) (int, error) {
	query := `DELETE FROM queue_items WHERE status IN ('sent', 'failed', 'cancelled')`

	result, err := s.db.Pool().Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("purge terminal items: %w", err)
	}

	removed := int(result.RowsAffected())
	if removed > 0 {
		s.logger.Info("purged terminal queue items", zap.Int("removed", removed))
	}
	return removed, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.Pool().Exec(ctx, `DELETE FROM queue_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (*queue.Item, error) {
	var item queue.Item
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Payload,
		&item.ScheduledFor,
		&item.Priority,
		&item.RetryCount,
		&item.MaxRetries,
		&item.Status,
		&item.ErrorMessage,
		&item.Metadata,
		&item.CreatedAt,
		&item.LastAttempt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func scanItems(rows pgx.Rows) ([]*queue.Item, error) {
	var items []*queue.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return items, nil
}
