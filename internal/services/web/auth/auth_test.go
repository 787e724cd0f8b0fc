package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/user"
	"github.com/NordCoder/CropSense/internal/services/web/ui"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type memUsers struct {
	mu   sync.Mutex
	next int64
	rows map[int64]*user.User
}

func newMemUsers() *memUsers { return &memUsers{rows: map[int64]*user.User{}} }

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	m.next++
	u.ID = m.next
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Email == email {
			cp := *r
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func newUsecase(repo user.Repo) *Usecase {
	return NewUseCase(repo, Config{Secret: []byte("test-secret"), TTL: time.Hour})
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	repo := newMemUsers()
	uc := newUsecase(repo)

	u, err := uc.Register(ctx, RegisterInput{Name: " Asha ", Email: "Asha@Example.com", Phone: "+911234567890", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "Asha", u.Name)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.NotEqual(t, "secret123", u.Password)

	got, token, err := uc.Login(ctx, "ASHA@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	resolved, err := uc.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, resolved.ID)

	_, _, err = uc.Login(ctx, "asha@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = uc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	uc := newUsecase(newMemUsers())
	_, err := uc.Register(ctx, RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "secret123"})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"duplicate email", RegisterInput{Name: "B", Email: "ASHA@example.com", Password: "secret123"}, ErrEmailExists},
		{"short password", RegisterInput{Name: "B", Email: "b@example.com", Password: "short"}, ErrWeakPassword},
		{"missing name", RegisterInput{Email: "c@example.com", Password: "secret123"}, ErrInvalidInput},
		{"bad email", RegisterInput{Name: "D", Email: "not-an-email", Password: "secret123"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Register(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveRejects(t *testing.T) {
	ctx := context.Background()
	uc := newUsecase(newMemUsers())

	_, err := uc.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = uc.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// valid signature, user gone
	token, err := uc.IssueToken(42)
	require.NoError(t, err)
	_, err = uc.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	other := NewUseCase(newMemUsers(), Config{Secret: []byte("other-secret")})
	_, err = other.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokenExpiry(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewTokens([]byte("k"), time.Hour, func() time.Time { return at })
	raw, err := issuer.Issue(7)
	require.NoError(t, err)

	id, err := NewTokens([]byte("k"), time.Hour, func() time.Time { return at.Add(59 * time.Minute) }).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = NewTokens([]byte("k"), time.Hour, func() time.Time { return at.Add(2 * time.Hour) }).Parse(raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func newRouter(t *testing.T, uc *Usecase) *gin.Engine {
	t.Helper()
	tmpl, err := ui.Templates()
	require.NoError(t, err)

	h := NewHandler(uc, CookieConfig{Name: "sess"}, nil)
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(h.Session())
	h.RegisterRoutes(r)
	r.GET("/dashboard", RequireUser(), func(c *gin.Context) {
		c.String(http.StatusOK, "hello "+ui.CurrentUser(c).Name)
	})
	return r
}

func postForm(r http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var last *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			last = c
		}
	}
	return last
}

func TestHTMLFlow(t *testing.T) {
	uc := newUsecase(newMemUsers())
	r := newRouter(t, uc)

	form := url.Values{"name": {"Asha"}, "email": {"asha@example.com"}, "password": {"secret123"}}
	w := postForm(r, "/register", form)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	require.NotNil(t, cookie(w, "cropsense_flash"))

	w = postForm(r, "/register", form)
	assert.Equal(t, "/register", w.Header().Get("Location"))

	w = postForm(r, "/login", url.Values{"email": {"asha@example.com"}, "password": {"nope-nope"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials.")
	assert.Nil(t, cookie(w, "sess"))

	w = postForm(r, "/login", url.Values{"email": {"asha@example.com"}, "password": {"secret123"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	sess := cookie(w, "sess")
	require.NotNil(t, sess)
	assert.True(t, sess.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(sess)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello Asha", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(sess)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "/", w.Header().Get("Location"))
	require.NotNil(t, cookie(w, "sess"))
	assert.Equal(t, -1, cookie(w, "sess").MaxAge)
}

func TestRequireUserRedirects(t *testing.T) {
	r := newRouter(t, newUsecase(newMemUsers()))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "sess", Value: "stale"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	require.NotNil(t, cookie(w, "cropsense_flash"))
	require.NotNil(t, cookie(w, "sess"))
	assert.Equal(t, -1, cookie(w, "sess").MaxAge)
}

func TestBearerSession(t *testing.T) {
	uc := newUsecase(newMemUsers())
	_, err := uc.Register(context.Background(), RegisterInput{Name: "Asha", Email: "asha@example.com", Password: "secret123"})
	require.NoError(t, err)
	_, token, err := uc.Login(context.Background(), "asha@example.com", "secret123")
	require.NoError(t, err)

	r := newRouter(t, uc)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI(t *testing.T) {
	uc := newUsecase(newMemUsers())
	mux := runtime.NewServeMux()
	require.NoError(t, NewAPI(uc, nil).Register(mux))

	call := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	w := call("/v1/auth/register", `{"name":"Asha","email":"asha@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "asha@example.com", out.User.Email)
	assert.NotContains(t, w.Body.String(), "password")

	tests := []struct {
		name, path, body string
		code             int
	}{
		{"duplicate", "/v1/auth/register", `{"name":"Asha","email":"asha@example.com","password":"secret123"}`, http.StatusConflict},
		{"weak password", "/v1/auth/register", `{"name":"B","email":"b@example.com","password":"x"}`, http.StatusBadRequest},
		{"malformed", "/v1/auth/register", `{`, http.StatusBadRequest},
		{"bad login", "/v1/auth/login", `{"email":"asha@example.com","password":"wrong-one"}`, http.StatusUnauthorized},
		{"login", "/v1/auth/login", `{"email":"asha@example.com","password":"secret123"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}
