package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/user"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrInvalidInput       = errors.New("name and a valid email are required")
	ErrUnauthenticated    = errors.New("not signed in")
)

const MinPasswordLen = 8

type Config struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

type Usecase struct {
	users  user.Repo
	tokens *Tokens
	now    func() time.Time
}

func NewUseCase(users user.Repo, cfg Config) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Usecase{
		users:  users,
		tokens: NewTokens(cfg.Secret, cfg.TTL, cfg.Now),
		now:    cfg.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates an account. A taken email fails before anything is written.
func (u *Usecase) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" {
		return nil, ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidInput
	}
	if len(in.Password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}

	switch _, err := u.users.GetByEmail(ctx, email); {
	case err == nil:
		return nil, ErrEmailExists
	case !errors.Is(err, user.ErrNotFound):
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	newUser := &user.User{
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(in.Phone),
		Password:  string(hash),
		CreatedAt: u.now(),
	}
	if err := u.users.Create(ctx, newUser); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return newUser, nil
}

// Login checks the credentials and issues a session token.
func (u *Usecase) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	rec, err := u.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.Password), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := u.tokens.Issue(rec.ID)
	if err != nil {
		return nil, "", fmt.Errorf("sign session: %w", err)
	}
	return rec, token, nil
}

// Resolve maps a session token to its user. A valid token whose user no
// longer exists counts as signed out.
func (u *Usecase) Resolve(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	id, err := u.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	rec, err := u.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return rec, nil
}

// IssueToken signs a session for an already authenticated user.
func (u *Usecase) IssueToken(userID int64) (string, error) {
	return u.tokens.Issue(userID)
}

func (u *Usecase) TTL() time.Duration { return u.tokens.ttl }
