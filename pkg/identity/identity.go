// Package identity carries the authenticated user id through request contexts.
// Authentication itself happens upstream; this layer only trusts the forwarded id.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofrs/uuid"
)

const (
	HeaderUserID = "X-User-ID"
	QueryUserID  = "user_id"
)

var ErrNoIdentity = errors.New("identity: no user in context")

type ctxKey struct{}

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func UserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(ctxKey{}).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoIdentity
	}
	return id, nil
}

// FromRequest reads the header first and falls back to the query parameter,
// which websocket clients use since browsers cannot set upgrade headers.
func FromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		raw = r.URL.Query().Get(QueryUserID)
	}
	if raw == "" {
		return uuid.Nil, ErrNoIdentity
	}
	id, err := uuid.FromString(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrNoIdentity
	}
	return id, nil
}

// Require rejects requests without a valid user id with 401.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := FromRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Missing or invalid user identity"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}
