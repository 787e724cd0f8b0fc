package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/jackc/pgx/v5"
)

var _ prediction.Repo = (*PredictionRepo)(nil)

type PredictionRepo struct{ db *DB }

func NewPredictionRepo(db *DB) *PredictionRepo { return &PredictionRepo{db: db} }

const (
	predictionCols = `id, user_id, image_path, disease, certainty, created_at`

	qPredictionInsert = `
INSERT INTO predictions (user_id, image_path, disease, certainty, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
RETURNING id, created_at;`

	qPredictionByID = `
SELECT ` + predictionCols + `
FROM predictions
WHERE id = $1;`

	qPredictionStats = `
SELECT COUNT(*) FILTER (WHERE disease ILIKE '%healthy%'),
       COUNT(*) FILTER (WHERE disease NOT ILIKE '%healthy%')
FROM predictions
WHERE user_id = $1;`

	qPredictionAlerts = `
SELECT ` + predictionCols + `
FROM predictions
WHERE user_id = $1
  AND disease NOT ILIKE '%healthy%'
ORDER BY created_at DESC, id DESC
LIMIT $2;`
)

const defaultListLimit = 20

func (r *PredictionRepo) Create(ctx context.Context, p *prediction.Prediction) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	p.Certainty = prediction.ClampCertainty(p.Certainty)
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qPredictionInsert,
		nullID(p.UserID),
		p.ImagePath,
		p.Disease,
		p.Certainty,
		nullTime(p.CreatedAt),
	).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (r *PredictionRepo) GetByID(ctx context.Context, id int64) (*prediction.Prediction, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	p, err := scanPrediction(r.db.execQueryer(ctx).QueryRow(ctx, qPredictionByID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, prediction.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return p, nil
}

func (r *PredictionRepo) List(ctx context.Context, f prediction.Filter) ([]*prediction.Prediction, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID > 0 {
		where = append(where, "user_id = "+arg(f.UserID))
	} else {
		where = append(where, "user_id IS NULL")
	}
	if s := strings.TrimSpace(f.Crop); s != "" {
		where = append(where, "disease ILIKE "+arg(likePattern(s)))
	}
	if s := strings.TrimSpace(f.Disease); s != "" {
		where = append(where, "disease ILIKE "+arg(likePattern(s)))
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < "+arg(f.To))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	q := "SELECT " + predictionCols + " FROM predictions WHERE " + strings.Join(where, " AND ") +
		" ORDER BY created_at DESC, id DESC LIMIT " + arg(limit)

	rows, err := r.db.execQueryer(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	return collectPredictions(rows, limit)
}

func (r *PredictionRepo) Stats(ctx context.Context, userID int64) (prediction.Stats, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s prediction.Stats
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qPredictionStats, userID).Scan(&s.Healthy, &s.Diseased); err != nil {
		return prediction.Stats{}, fmt.Errorf("prediction stats: %w", err)
	}
	return s, nil
}

func (r *PredictionRepo) RecentAlerts(ctx context.Context, userID int64, limit int) ([]*prediction.Prediction, error) {
	if limit <= 0 {
		limit = 5
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qPredictionAlerts, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return collectPredictions(rows, limit)
}

func collectPredictions(rows pgx.Rows, capacity int) ([]*prediction.Prediction, error) {
	defer rows.Close()

	out := make([]*prediction.Prediction, 0, capacity)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func scanPrediction(row pgx.Row) (*prediction.Prediction, error) {
	var (
		p   prediction.Prediction
		uid *int64
	)
	if err := row.Scan(&p.ID, &uid, &p.ImagePath, &p.Disease, &p.Certainty, &p.CreatedAt); err != nil {
		return nil, err
	}
	if uid != nil {
		p.UserID = *uid
	}
	return &p, nil
}
