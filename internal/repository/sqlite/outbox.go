package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/outbox"
	"github.com/jmoiron/sqlx"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

type OutboxRepo struct {
	db  *DB
	now func() time.Time
}

func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db, now: time.Now} }

type outboxRow struct {
	IdempotencyKey string    `db:"idempotency_key"`
	Kind           int       `db:"kind"`
	Data           []byte    `db:"data"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	Traceparent    string    `db:"traceparent"`
	Tracestate     string    `db:"tracestate"`
	Baggage        string    `db:"baggage"`
}

const (
	qEnqueue = `
INSERT INTO outbox (idempotency_key, data, status, kind, traceparent, tracestate, baggage, created_at, updated_at)
VALUES (?, ?, 'CREATED', ?, ?, ?, ?, ?, ?)
ON CONFLICT (idempotency_key) DO NOTHING;`

	qPickKeys = `
SELECT idempotency_key
FROM outbox
WHERE status = 'CREATED'
   OR (status = 'IN_PROGRESS' AND updated_at < ?)
ORDER BY created_at
LIMIT ?;`

	qClaim = `UPDATE outbox SET status = 'IN_PROGRESS', updated_at = ? WHERE idempotency_key IN (?);`

	qByKeys = `
SELECT idempotency_key, kind, data, status, created_at, updated_at, traceparent, tracestate, baggage
FROM outbox
WHERE idempotency_key IN (?)
ORDER BY created_at;`

	qMarkSuccess = `UPDATE outbox SET status = 'SUCCESS', updated_at = ? WHERE idempotency_key IN (?);`
)

func (r *OutboxRepo) Enqueue(ctx context.Context, m outbox.Message) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	now := r.now().UTC()
	if _, err := r.db.ext(ctx).ExecContext(ctx, qEnqueue,
		m.IdempotencyKey, m.Data, int(m.Kind), m.Traceparent, m.Tracestate, m.Baggage, now, now,
	); err != nil {
		return fmt.Errorf("outbox enqueue: %w", err)
	}
	return nil
}

// PickBatch claims due messages in one transaction. The single connection
// serializes claimers, so a message is never handed out twice within the TTL.
func (r *OutboxRepo) PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) (_ []outbox.Message, err error) {
	if batch <= 0 {
		return nil, errors.New("batch must be > 0")
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.X.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("outbox pick: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.now().UTC()
	var keys []string
	if err = tx.SelectContext(ctx, &keys, qPickKeys, now.Add(-inProgressTTL), batch); err != nil {
		return nil, fmt.Errorf("outbox pick: %w", err)
	}
	if len(keys) == 0 {
		return nil, tx.Commit()
	}

	q, args, err := sqlx.In(qClaim, now, keys)
	if err != nil {
		return nil, fmt.Errorf("outbox claim: %w", err)
	}
	if _, err = tx.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("outbox claim: %w", err)
	}

	q, args, err = sqlx.In(qByKeys, keys)
	if err != nil {
		return nil, fmt.Errorf("outbox load: %w", err)
	}
	var rows []outboxRow
	if err = tx.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("outbox load: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("outbox pick commit: %w", err)
	}

	out := make([]outbox.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, outbox.Message{
			IdempotencyKey: row.IdempotencyKey,
			Kind:           outbox.Kind(row.Kind),
			Data:           row.Data,
			Status:         outbox.Status(row.Status),
			CreatedAt:      row.CreatedAt.UTC(),
			UpdatedAt:      row.UpdatedAt.UTC(),
			Traceparent:    row.Traceparent,
			Tracestate:     row.Tracestate,
			Baggage:        row.Baggage,
		})
	}
	return out, nil
}

func (r *OutboxRepo) MarkSuccess(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	q, args, err := sqlx.In(qMarkSuccess, r.now().UTC(), keys)
	if err != nil {
		return fmt.Errorf("outbox mark success: %w", err)
	}
	if _, err := r.db.X.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("outbox mark success: %w", err)
	}
	return nil
}
