package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWriteError(t *testing.T) {
	mux := runtime.NewServeMux()
	cases := []struct {
		err  error
		code int
	}{
		{status.Error(codes.InvalidArgument, "No file uploaded."), http.StatusBadRequest},
		{status.Error(codes.Unauthenticated, "Invalid credentials."), http.StatusUnauthorized},
		{status.Error(codes.AlreadyExists, "Email already registered."), http.StatusConflict},
		{status.Error(codes.NotFound, "not found"), http.StatusNotFound},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(mux, rec, httptest.NewRequest(http.MethodGet, "/v1/x", nil), tc.err)
		require.Equal(t, tc.code, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	WriteError(mux, rec, httptest.NewRequest(http.MethodGet, "/v1/x", nil), errors.New("secret dsn"))
	require.NotContains(t, rec.Body.String(), "secret dsn")
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, BearerToken(r))
	r.Header.Set("Authorization", "Bearer abc.def")
	require.Equal(t, "abc.def", BearerToken(r))
	r.Header.Set("Authorization", "bearer xyz")
	require.Equal(t, "xyz", BearerToken(r))
	r.Header.Set("Authorization", "Basic Zm9v")
	require.Empty(t, BearerToken(r))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}
