package services

import (
	"context"
	"log"
	"net/http"
	"strings"
)

// Identity is the authenticated caller. Every dream operation takes it explicitly.
type Identity struct {
	UserID   string `json:"id"`
	Username string `json:"username,omitempty"`
}

// IsZero reports whether the identity carries no user.
func (i Identity) IsZero() bool {
	return strings.TrimSpace(i.UserID) == ""
}

// IdentityProvider resolves the caller of an HTTP request.
type IdentityProvider interface {
	CurrentUser(ctx context.Context, r *http.Request) (Identity, error)
}

// SessionIdentityProvider resolves identities from Redis-backed bearer sessions.
type SessionIdentityProvider struct {
	sessions *SessionStore
}

func NewSessionIdentityProvider(sessions *SessionStore) *SessionIdentityProvider {
	return &SessionIdentityProvider{sessions: sessions}
}

// CurrentUser reads the bearer token from the Authorization header, falling
// back to the token query parameter for browser WebSocket clients. Each
// resolved request slides the session forward; a failed refresh does not
// reject the caller.
func (p *SessionIdentityProvider) CurrentUser(ctx context.Context, r *http.Request) (Identity, error) {
	token := RequestToken(r)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	userID, ok, err := p.sessions.Validate(ctx, token)
	if err != nil || !ok {
		return Identity{}, ErrUnauthenticated
	}
	if err := p.sessions.Refresh(ctx, token, userID); err != nil {
		log.Printf("Warning: failed to refresh session for %s: %v", userID, err)
	}
	return Identity{UserID: userID.String()}, nil
}

// RequestToken returns the session token carried by r, if any.
func RequestToken(r *http.Request) string {
	if token := ExtractBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// ExtractBearerToken parses "Bearer <token>" (scheme is case-insensitive).
func ExtractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
