package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrRemoteDisabled = errors.New("remote object store not configured")

// ObjectStore is a remote blob store addressed by public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Ref, error)
	Fetch(ctx context.Context, ref Ref) ([]byte, error)
}

type disabledStore struct{}

func (disabledStore) Put(context.Context, string, []byte, string) (Ref, error) {
	return "", ErrRemoteDisabled
}

func (disabledStore) Fetch(context.Context, Ref) ([]byte, error) { return nil, ErrRemoteDisabled }

// Disabled is the ObjectStore used when no remote credentials are configured.
func Disabled() ObjectStore { return disabledStore{} }

type SupabaseConfig struct {
	URL      string
	Key      string
	Bucket   string
	Timeout  time.Duration
	MaxFetch int64
}

// Supabase talks to the Supabase Storage REST API.
type Supabase struct {
	base     string
	key      string
	bucket   string
	maxFetch int64
	client   *http.Client
	log      *zap.Logger
}

var _ ObjectStore = (*Supabase)(nil)

func NewSupabase(cfg SupabaseConfig) *Supabase {
	if cfg.MaxFetch <= 0 {
		cfg.MaxFetch = 20 << 20
	}
	return &Supabase{
		base:     strings.TrimRight(cfg.URL, "/"),
		key:      cfg.Key,
		bucket:   cfg.Bucket,
		maxFetch: cfg.MaxFetch,
		client:   newHTTPClient(cfg.Timeout),
		log:      zap.L().With(zap.String("component", "storage.supabase")),
	}
}

func (s *Supabase) WithLogger(l *zap.Logger) *Supabase {
	if l == nil {
		return s
	}
	cp := *s
	cp.log = l.With(zap.String("component", "storage.supabase"))
	return &cp
}

func (s *Supabase) objectURL(key string) string {
	return s.base + "/storage/v1/object/" + url.PathEscape(s.bucket) + "/" + url.PathEscape(key)
}

func (s *Supabase) PublicURL(key string) string {
	return s.base + "/storage/v1/object/public/" + url.PathEscape(s.bucket) + "/" + url.PathEscape(key)
}

func (s *Supabase) Put(ctx context.Context, key string, data []byte, contentType string) (Ref, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload %s: status %d: %s", key, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.log.Debug("object uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Ref(s.PublicURL(key)), nil
}

func (s *Supabase) Fetch(ctx context.Context, ref Ref) ([]byte, error) {
	if !ref.Remote() {
		return nil, fmt.Errorf("fetch %q: not a remote reference", ref)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(ref), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref.Key(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", ref.Key(), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxFetch+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref.Key(), err)
	}
	if int64(len(data)) > s.maxFetch {
		return nil, fmt.Errorf("fetch %s: object exceeds %d bytes", ref.Key(), s.maxFetch)
	}
	return data, nil
}
