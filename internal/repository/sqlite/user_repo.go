package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/user"
	"github.com/jmoiron/sqlx"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct{ db *DB }

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

type userRow struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toDomain() *user.User {
	return &user.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone,
		Password:  r.PasswordHash,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

const (
	qUserInsert = `
INSERT INTO users (name, email, phone, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id;`

	qUserByID    = `SELECT id, name, email, phone, password_hash, created_at FROM users WHERE id = ?;`
	qUserByEmail = `SELECT id, name, email, phone, password_hash, created_at FROM users WHERE email = ?;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	created := stamp(u.CreatedAt)
	if err := r.db.ext(ctx).QueryRowxContext(ctx, qUserInsert, u.Name, u.Email, u.Phone, u.Password, created).
		Scan(&u.ID); err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("user insert: %w", err)
	}
	u.CreatedAt = created
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.get(ctx, qUserByID, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.get(ctx, qUserByEmail, email)
}

func (r *UserRepo) get(ctx context.Context, q string, arg any) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var row userRow
	if err := sqlx.GetContext(ctx, r.db.ext(ctx), &row, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain(), nil
}
