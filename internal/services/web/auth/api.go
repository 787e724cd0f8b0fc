package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NordCoder/CropSense/internal/domain/user"
	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/services/web/httpx"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// API serves the JSON account endpoints under /v1/auth.
type API struct {
	uc  *Usecase
	log *zap.Logger
}

func NewAPI(uc *Usecase, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{uc: uc, log: log.With(zap.String("component", "api.auth"))}
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

func (a *API) Register(mux *runtime.ServeMux) error {
	if err := mux.HandlePath(http.MethodPost, "/v1/auth/register", a.register(mux)); err != nil {
		return err
	}
	return mux.HandlePath(http.MethodPost, "/v1/auth/login", a.login(mux))
}

func (a *API) register(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(mux, w, r, status.Error(codes.InvalidArgument, "malformed JSON body"))
			return
		}
		u, err := a.uc.Register(r.Context(), RegisterInput(req))
		if err != nil {
			httpx.WriteError(mux, w, r, a.status(r, err))
			return
		}
		token, err := a.uc.IssueToken(u.ID)
		if err != nil {
			httpx.WriteError(mux, w, r, a.status(r, err))
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, sessionResponse{Token: token, User: u})
	}
}

func (a *API) login(mux *runtime.ServeMux) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		var req credentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(mux, w, r, status.Error(codes.InvalidArgument, "malformed JSON body"))
			return
		}
		u, token, err := a.uc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			httpx.WriteError(mux, w, r, a.status(r, err))
			return
		}
		httpx.WriteJSON(w, http.StatusOK, sessionResponse{Token: token, User: u})
	}
}

func (a *API) status(r *http.Request, err error) error {
	switch {
	case errors.Is(err, ErrEmailExists):
		return status.Error(codes.AlreadyExists, "Email already registered.")
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "Invalid credentials.")
	case errors.Is(err, ErrWeakPassword):
		return status.Error(codes.InvalidArgument, "Password must be at least 8 characters.")
	case errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, "Name and a valid email are required.")
	default:
		obs.WithTrace(r.Context(), a.log).Error("account request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}
