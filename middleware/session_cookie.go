package middleware

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"nmafoods/api/session"
)

const (
	SessionCookie      = "nma_session_id"
	SessionStartCookie = "nma_session_start"
	SampledCookie      = "nma_perf_sampled"
	SessionSigCookie   = "nma_session_sig"

	sessionStoreKey = "session_store"
)

// CookieStore keeps a visitor's session State in browser-session cookies.
// The three values are covered by an HS256 signature cookie keyed with the
// server secret; state whose signature does not verify is not loaded.
// Saved state is also visible to later Loads within the same request.
type CookieStore struct {
	c      *gin.Context
	secure bool
	key    []byte
	saved  *session.State
}

// SessionStore returns the request's CookieStore, creating it on first use.
func SessionStore(c *gin.Context, secure bool, key []byte) *CookieStore {
	if v, ok := c.Get(sessionStoreKey); ok {
		if st, ok := v.(*CookieStore); ok {
			return st
		}
	}
	st := &CookieStore{c: c, secure: secure, key: key}
	c.Set(sessionStoreKey, st)
	return st
}

func (s *CookieStore) Load() (session.State, bool) {
	if s.saved != nil {
		return *s.saved, true
	}
	id, err := s.c.Cookie(SessionCookie)
	if err != nil || id == "" {
		return session.State{}, false
	}
	raw, err := s.c.Cookie(SessionStartCookie)
	if err != nil {
		return session.State{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return session.State{}, false
	}
	sampled, _ := s.c.Cookie(SampledCookie)
	rawSig, err := s.c.Cookie(SessionSigCookie)
	if err != nil {
		return session.State{}, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(rawSig)
	if err != nil {
		return session.State{}, false
	}
	if err := jwt.SigningMethodHS256.Verify(signingString(id, raw, sampled), sig, s.key); err != nil {
		return session.State{}, false
	}
	return session.State{
		ID:      id,
		Start:   time.UnixMilli(ms),
		Sampled: sampled == "1",
	}, true
}

func (s *CookieStore) Save(st session.State) {
	s.saved = &st
	sampled := "0"
	if st.Sampled {
		sampled = "1"
	}
	start := strconv.FormatInt(st.Start.UnixMilli(), 10)
	// Sign only fails for a non-[]byte key.
	sig, _ := jwt.SigningMethodHS256.Sign(signingString(st.ID, start, sampled), s.key)

	// MaxAge 0 keeps these as browser-session cookies.
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(SessionCookie, st.ID, 0, "/", "", s.secure, true)
	s.c.SetCookie(SessionStartCookie, start, 0, "/", "", s.secure, true)
	s.c.SetCookie(SampledCookie, sampled, 0, "/", "", s.secure, true)
	s.c.SetCookie(SessionSigCookie, base64.RawURLEncoding.EncodeToString(sig), 0, "/", "", s.secure, true)
}

func signingString(id, start, sampled string) string {
	return id + "." + start + "." + sampled
}
