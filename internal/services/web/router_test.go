package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NordCoder/CropSense/internal/inference"
	"github.com/NordCoder/CropSense/internal/outbox"
	"github.com/NordCoder/CropSense/internal/repository/sqlite"
	"github.com/NordCoder/CropSense/internal/services/notifier"
	"github.com/NordCoder/CropSense/internal/services/web/auth"
	"github.com/NordCoder/CropSense/internal/services/web/diagnosis"
	"github.com/NordCoder/CropSense/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newTestHandler(t *testing.T, health func(context.Context) error) (http.Handler, string) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.New(ctx, sqlite.Config{DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	dir := t.TempDir()
	local, err := storage.NewLocalDisk(dir, "/static/uploads")
	require.NoError(t, err)

	authUC := auth.NewUseCase(sqlite.NewUserRepo(db), auth.Config{Secret: []byte("s"), TTL: time.Hour})
	diagUC := diagnosis.New(diagnosis.Deps{
		Store:         storage.NewGateway(nil, local, nil),
		Engine:        inference.NewEngine(nil, inference.NewLabels(nil), 0, nil),
		Predictions:   sqlite.NewPredictionRepo(db),
		Notifications: sqlite.NewNotificationRepo(db),
		Events:        outbox.Discard(),
		Tx:            sqlite.NewTransactor(db, nil),
		Dispatcher:    &notifier.Dispatcher{Email: notifier.DisabledEmail(), SMS: notifier.DisabledSMS()},
	}, diagnosis.Options{})

	h, err := NewHandler(Deps{
		Auth:          authUC,
		Diagnosis:     diagUC,
		Cookie:        auth.CookieConfig{Name: "sess"},
		UploadsDir:    dir,
		UploadsPrefix: "/static/uploads",
		CORSOrigins:   []string{"http://localhost:3000"},
		Health:        health,
	})
	require.NoError(t, err)
	return h, dir
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoutes(t *testing.T) {
	h, dir := newTestHandler(t, func(context.Context) error { return nil })
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc_leaf.jpg"), []byte("img"), 0o644))

	for _, path := range []string{"/", "/crops", "/about", "/login", "/register"} {
		w := get(h, path)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), "</html>", path)
	}

	w := get(h, "/dashboard")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = get(h, "/static/uploads/abc_leaf.jpg")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "img", w.Body.String())

	assert.Equal(t, http.StatusOK, get(h, "/healthz").Code)
	assert.Contains(t, get(h, "/metrics").Body.String(), "go_goroutines")
	assert.Equal(t, http.StatusNotFound, get(h, "/nope").Code)

	w = get(h, "/v1/predictions")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register",
		strings.NewReader(`{"name":"Asha","email":"asha@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealthFailure(t *testing.T) {
	h, _ := newTestHandler(t, func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/healthz").Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
