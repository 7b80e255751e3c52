package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// Sessions issues and reads the cookie that keys a visitor's cart.
type Sessions struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// ID returns the session id from the request cookie, setting a new cookie on w when none is present.
func (s Sessions) ID(w http.ResponseWriter, r *http.Request) (string, error) {
	if id, ok := s.Peek(r); ok {
		return id, nil
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate cart session id: %w", err)
	}

	cookie := &http.Cookie{
		Name:     s.CookieName,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.TTL > 0 {
		cookie.MaxAge = int(s.TTL.Seconds())
	}
	http.SetCookie(w, cookie)
	log.Debug().Str("session_id", id.String()).Msg("Issued new cart session")

	return id.String(), nil
}

// Peek returns the session id without issuing a cookie.
func (s Sessions) Peek(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.CookieName)
	if err != nil {
		return "", false
	}
	id, err := uuid.FromString(c.Value)
	if err != nil || id == uuid.Nil {
		return "", false
	}
	return id.String(), true
}
