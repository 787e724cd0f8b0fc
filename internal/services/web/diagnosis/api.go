package diagnosis

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/NordCoder/CropSense/internal/domain/user"
	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/services/web/httpx"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (*user.User, error)
}

// API serves /v1/predictions. Every endpoint requires a bearer token.
type API struct {
	uc        *Usecase
	authn     Authenticator
	maxUpload int64
	log       *zap.Logger
}

func NewAPI(uc *Usecase, authn Authenticator, maxUpload int64, log *zap.Logger) *API {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &API{uc: uc, authn: authn, maxUpload: maxUpload, log: log.With(zap.String("component", "api.diagnosis"))}
}

func (a *API) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method, path string
		h            func(*runtime.ServeMux) runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/predictions", a.create},
		{http.MethodGet, "/v1/predictions", a.list},
		{http.MethodGet, "/v1/predictions/{id}", a.get},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, rt.h(mux)); err != nil {
			return err
		}
	}
	return nil
}

func (a *API) caller(r *http.Request) (*user.User, error) {
	token := httpx.BearerToken(r)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	u, err := a.authn.Resolve(r.Context(), token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return u, nil
}

func (a *API) create(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		u, err := a.caller(r)
		if err != nil {
			httpx.WriteError(mux, w, r, err)
			return
		}
		limitBody(w, r, a.maxUpload)
		up, err := readUpload(r, a.maxUpload)
		if err != nil {
			httpx.WriteError(mux, w, r, a.status(r, err))
			return
		}
		out, err := a.uc.Predict(r.Context(), u, up)
		if err != nil {
			httpx.WriteError(mux, w, r, a.status(r, err))
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, out)
	}
}

func (a *API) list(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		u, err := a.caller(r)
		if err != nil {
			httpx.WriteError(mux, w, r, err)
			return
		}
		v := r.URL.Query()
		hist, err := a.uc.History(r.Context(), u.ID, Query{
			Crop:     v.Get("crop"),
			Disease:  v.Get("disease"),
			DateFrom: v.Get("date_from"),
			DateTo:   v.Get("date_to"),
		})
		if err != nil {
			httpx.WriteError(mux, w, r, a.status(r, err))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, hist)
	}
}

func (a *API) get(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		u, err := a.caller(r)
		if err != nil {
			httpx.WriteError(mux, w, r, err)
			return
		}
		id, err := strconv.ParseInt(params["id"], 10, 64)
		if err != nil || id <= 0 {
			httpx.WriteError(mux, w, r, status.Error(codes.InvalidArgument, "id must be a positive integer"))
			return
		}
		d, err := a.uc.Get(r.Context(), u.ID, id)
		if err != nil {
			httpx.WriteError(mux, w, r, a.status(r, err))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, d)
	}
}

func (a *API) status(r *http.Request, err error) error {
	switch {
	case errors.Is(err, ErrNoFile):
		return status.Error(codes.InvalidArgument, "No file uploaded.")
	case errors.Is(err, ErrNotImage):
		return status.Error(codes.InvalidArgument, "upload is not a supported image")
	case errors.Is(err, ErrTooLarge):
		return status.Error(codes.InvalidArgument, "upload too large")
	case errors.Is(err, prediction.ErrNotFound):
		return status.Error(codes.NotFound, "prediction not found")
	default:
		obs.WithTrace(r.Context(), a.log).Error("prediction request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}
