// Package httpx holds the JSON helpers shared by the /v1 gateway handlers.
// Errors are gRPC statuses so the gateway maps them to HTTP codes and writes
// a google.rpc.Status body.
package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err through the gateway's error handler. Errors that are
// not gRPC statuses become Internal with a generic message.
func WriteError(mux *runtime.ServeMux, w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := status.FromError(err); !ok {
		err = status.Error(codes.Internal, "internal error")
	}
	runtime.HTTPError(r.Context(), mux, &runtime.JSONPb{}, w, r, err)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
