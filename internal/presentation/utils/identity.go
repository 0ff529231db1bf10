package utils

import (
	"context"
	"net/http"

	"github.com/hilthontt/tourchat/internal/domain"
)

// Identity headers are set by the auth proxy in front of the API and are trusted as is.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderUserPhoto = "X-User-Photo"
)

type identityKey struct{}

// IdentityFromHeaders returns nil for an anonymous request.
func IdentityFromHeaders(r *http.Request) (*domain.Identity, error) {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		return nil, nil
	}
	return domain.NewIdentity(id, r.Header.Get(HeaderUserName), r.Header.Get(HeaderUserPhoto))
}

func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// GetIdentity returns the caller, or nil when anonymous.
func GetIdentity(r *http.Request) *domain.Identity {
	identity, _ := r.Context().Value(identityKey{}).(*domain.Identity)
	return identity
}
