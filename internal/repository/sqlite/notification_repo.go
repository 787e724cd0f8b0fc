package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/notification"
	"github.com/jmoiron/sqlx"
)

var _ notification.Repo = (*NotificationRepo)(nil)

type NotificationRepo struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

type notificationRow struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	PredictionID int64     `db:"prediction_id"`
	Channel      string    `db:"channel"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

const (
	notificationCols = `id, user_id, prediction_id, channel, status, created_at`

	qNotifInsert = `
INSERT INTO notifications (user_id, prediction_id, channel, status, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id;`

	qNotifByPrediction = `SELECT ` + notificationCols + ` FROM notifications WHERE prediction_id = ? ORDER BY id;`

	qNotifByUser = `
SELECT ` + notificationCols + `
FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
)

func (r *NotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	created := stamp(n.CreatedAt)
	if err := r.db.ext(ctx).QueryRowxContext(ctx, qNotifInsert,
		n.UserID, n.PredictionID, string(n.Channel), string(n.Status), created,
	).Scan(&n.ID); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.CreatedAt = created
	return nil
}

func (r *NotificationRepo) ListByPrediction(ctx context.Context, predictionID int64) ([]*notification.Notification, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, r.db.ext(ctx), &rows, qNotifByPrediction, predictionID); err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return toNotifications(rows), nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, r.db.ext(ctx), &rows, qNotifByUser, userID, limit); err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return toNotifications(rows), nil
}

func toNotifications(rows []notificationRow) []*notification.Notification {
	out := make([]*notification.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, &notification.Notification{
			ID:           r.ID,
			UserID:       r.UserID,
			PredictionID: r.PredictionID,
			Channel:      notification.Channel(r.Channel),
			Status:       notification.Status(r.Status),
			CreatedAt:    r.CreatedAt.UTC(),
		})
	}
	return out
}
