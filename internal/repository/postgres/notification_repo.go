package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/CropSense/internal/domain/notification"
	"github.com/jackc/pgx/v5"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications (user_id, prediction_id, channel, status, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
RETURNING id, created_at;
`
	qNotifByPrediction = `
SELECT id, user_id, prediction_id, channel, status, created_at
FROM notifications
WHERE prediction_id = $1
ORDER BY id;
`
	qNotifByUser = `
SELECT id, user_id, prediction_id, channel, status, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;
`
)

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qNotifInsert,
		n.UserID,
		n.PredictionID,
		string(n.Channel),
		string(n.Status),
		nullTime(n.CreatedAt),
	).Scan(&n.ID, &n.CreatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) ListByPrediction(ctx context.Context, predictionID int64) ([]*notification.Notification, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNotifByPrediction, predictionID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return collectNotifications(rows, 2)
}

func (r *NotificationRepoImpl) ListByUser(ctx context.Context, userID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNotifByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return collectNotifications(rows, limit)
}

func collectNotifications(rows pgx.Rows, capacity int) ([]*notification.Notification, error) {
	defer rows.Close()

	out := make([]*notification.Notification, 0, capacity)
	for rows.Next() {
		var (
			n               notification.Notification
			channel, status string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.PredictionID, &channel, &status, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Channel = notification.Channel(channel)
		n.Status = notification.Status(status)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
