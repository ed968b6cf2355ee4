// Package auth is the boundary to the external account/session gateway.
// The core never sees credentials; it only receives a stable identity
// (or anonymous) per request.
package auth

import (
	"context"
	"log"
	"net/http"

	"github.com/mtoman/newsfeed/internal/storage"
)

// Identity is the minimal profile the core needs to attribute a vote.
type Identity struct {
	UserID   uint
	Username string
	Email    string
	Avatar   string
	Admin    bool
}

// Anonymous reports whether the request carried no authenticated user.
func (id Identity) Anonymous() bool { return id.UserID == 0 }

// Gateway resolves an inbound request to an identity. ok is false for
// anonymous visitors.
type Gateway interface {
	Resolve(r *http.Request) (id Identity, ok bool)
}

// HeaderGateway trusts identity headers set by an authenticating reverse
// proxy (X-User-Email, X-User-Name, X-User-Avatar) and lazily creates the
// matching user row on first sight.
type HeaderGateway struct {
	store *storage.Store
}

func NewHeaderGateway(store *storage.Store) *HeaderGateway {
	return &HeaderGateway{store: store}
}

func (g *HeaderGateway) Resolve(r *http.Request) (Identity, bool) {
	email := r.Header.Get("X-User-Email")
	if email == "" {
		return Identity{}, false
	}
	username := r.Header.Get("X-User-Name")
	if username == "" {
		username = email
	}

	u, err := g.store.EnsureUser(r.Context(), username, email)
	if err != nil {
		log.Printf("auth: ensure user %s: %v", email, err)
		return Identity{}, false
	}

	return Identity{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   r.Header.Get("X-User-Avatar"),
		Admin:    u.Admin,
	}, true
}

type contextKey struct{}

// WithIdentity attaches id to ctx for downstream handlers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached to ctx, or a zero (anonymous)
// identity.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Identity{}
}
