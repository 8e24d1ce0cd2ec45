// Package auth keeps login sessions and carries the authenticated user
// through request contexts.
package auth

import (
	"context"
	"net/http"
	"time"

	"habitual/internal/cache"
	"habitual/internal/core"

	"github.com/google/uuid"
)

const CookieName = "habitual_session"

// Sessions maps opaque tokens to user ids. Entries expire after the TTL
// unless refreshed by activity.
type Sessions struct {
	store  *cache.LRUCache[int64]
	ttl    time.Duration
	secure bool
}

func NewSessions(maxSessions int, ttl time.Duration, secureCookie bool) *Sessions {
	return &Sessions{
		store:  cache.NewLRUCache[int64](maxSessions, ttl),
		ttl:    ttl,
		secure: secureCookie,
	}
}

// Cache exposes the backing cache so it can be registered for cleanup.
func (s *Sessions) Cache() *cache.LRUCache[int64] {
	return s.store
}

// Create starts a session for userID and sets its cookie.
func (s *Sessions) Create(w http.ResponseWriter, userID int64) string {
	token := uuid.NewString()
	s.store.Set(token, userID)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// Lookup resolves the request's session cookie to a user id.
func (s *Sessions) Lookup(r *http.Request) (int64, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return 0, false
	}
	userID, ok := s.store.Get(c.Value)
	if ok {
		s.store.Touch(c.Value)
	}
	return userID, ok
}

// Destroy ends the request's session and clears the cookie.
func (s *Sessions) Destroy(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		s.store.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Active returns the number of live sessions.
func (s *Sessions) Active() int {
	return s.store.Size()
}

type contextKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, user core.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (core.User, bool) {
	user, ok := ctx.Value(contextKey{}).(core.User)
	return user, ok
}
