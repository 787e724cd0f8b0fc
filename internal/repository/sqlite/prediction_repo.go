package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/jmoiron/sqlx"
)

var _ prediction.Repo = (*PredictionRepo)(nil)

type PredictionRepo struct{ db *DB }

func NewPredictionRepo(db *DB) *PredictionRepo { return &PredictionRepo{db: db} }

type predictionRow struct {
	ID        int64         `db:"id"`
	UserID    sql.NullInt64 `db:"user_id"`
	ImagePath string        `db:"image_path"`
	Disease   string        `db:"disease"`
	Certainty int           `db:"certainty"`
	CreatedAt time.Time     `db:"created_at"`
}

func (r predictionRow) toDomain() *prediction.Prediction {
	return &prediction.Prediction{
		ID:        r.ID,
		UserID:    r.UserID.Int64,
		ImagePath: r.ImagePath,
		Disease:   r.Disease,
		Certainty: r.Certainty,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

const (
	predictionCols = `id, user_id, image_path, disease, certainty, created_at`

	qPredictionInsert = `
INSERT INTO predictions (user_id, image_path, disease, certainty, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id;`

	qPredictionByID = `SELECT ` + predictionCols + ` FROM predictions WHERE id = ?;`

	qPredictionStats = `
SELECT COUNT(CASE WHEN disease LIKE '%healthy%' THEN 1 END)     AS healthy,
       COUNT(CASE WHEN disease NOT LIKE '%healthy%' THEN 1 END) AS diseased
FROM predictions
WHERE user_id = ?;`

	qPredictionAlerts = `
SELECT ` + predictionCols + `
FROM predictions
WHERE user_id = ?
  AND disease NOT LIKE '%healthy%'
ORDER BY created_at DESC, id DESC
LIMIT ?;`
)

const defaultListLimit = 20

func (r *PredictionRepo) Create(ctx context.Context, p *prediction.Prediction) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	p.Certainty = prediction.ClampCertainty(p.Certainty)
	created := stamp(p.CreatedAt)
	if err := r.db.ext(ctx).QueryRowxContext(ctx, qPredictionInsert,
		nullID(p.UserID), p.ImagePath, p.Disease, p.Certainty, created,
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	p.CreatedAt = created
	return nil
}

func (r *PredictionRepo) GetByID(ctx context.Context, id int64) (*prediction.Prediction, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var row predictionRow
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &row, qPredictionByID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, prediction.ErrNotFound
		}
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return row.toDomain(), nil
}

func (r *PredictionRepo) List(ctx context.Context, f prediction.Filter) ([]*prediction.Prediction, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if f.UserID > 0 {
		where, args = append(where, "user_id = ?"), append(args, f.UserID)
	} else {
		where = append(where, "user_id IS NULL")
	}
	if s := strings.TrimSpace(f.Crop); s != "" {
		where, args = append(where, `disease LIKE ? ESCAPE '\'`), append(args, likePattern(s))
	}
	if s := strings.TrimSpace(f.Disease); s != "" {
		where, args = append(where, `disease LIKE ? ESCAPE '\'`), append(args, likePattern(s))
	}
	if !f.From.IsZero() {
		where, args = append(where, "created_at >= ?"), append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where, args = append(where, "created_at < ?"), append(args, f.To.UTC())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	q := "SELECT " + predictionCols + " FROM predictions WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, id DESC LIMIT ?"

	var rows []predictionRow
	if err := sqlx.SelectContext(ctx, r.db.ext(ctx), &rows, q, args...); err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	return toPredictions(rows), nil
}

func (r *PredictionRepo) Stats(ctx context.Context, userID int64) (prediction.Stats, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var row struct {
		Healthy  int `db:"healthy"`
		Diseased int `db:"diseased"`
	}
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &row, qPredictionStats, userID); err != nil {
		return prediction.Stats{}, fmt.Errorf("prediction stats: %w", err)
	}
	return prediction.Stats{Healthy: row.Healthy, Diseased: row.Diseased}, nil
}

func (r *PredictionRepo) RecentAlerts(ctx context.Context, userID int64, limit int) ([]*prediction.Prediction, error) {
	if limit <= 0 {
		limit = 5
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var rows []predictionRow
	if err := sqlx.SelectContext(ctx, r.db.ext(ctx), &rows, qPredictionAlerts, userID, limit); err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return toPredictions(rows), nil
}

func toPredictions(rows []predictionRow) []*prediction.Prediction {
	out := make([]*prediction.Prediction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
