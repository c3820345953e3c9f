package api

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"headshotstudio/internal/httpx"
	"headshotstudio/internal/store"
)

const (
	sessionCookieName = "hs_session"
	minPasswordLength = 8
)

type ctxKey int

const profileCtxKey ctxKey = iota

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

func profileFromContext(ctx context.Context) (*store.Profile, bool) {
	p, ok := ctx.Value(profileCtxKey).(*store.Profile)
	return p, ok && p != nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newSessionToken() (token string, tokenSHA string, err error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(b[:])
	return token, sha256Hex(token), nil
}

func sessionCookieSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   sessionCookieSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt.UTC(),
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
	})
	w.Header().Set(httpx.SessionExpiresHeader, expiresAt.UTC().Format(time.RFC3339))
}

func requestToken(r *http.Request) string {
	if t := httpx.BearerToken(r); t != "" {
		return t
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

var errNoSession = errors.New("no session")

// authenticate resolves a raw session token and moves its expiry forward.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, token string) (*store.Profile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errNoSession
	}
	sess, p, err := s.store.SessionByToken(r.Context(), sha256Hex(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNoSession
		}
		return nil, err
	}

	expiresAt := time.Now().Add(s.cfg.SessionTTL).Truncate(time.Second)
	if err := s.store.TouchSession(r.Context(), sess.ID, expiresAt); err != nil {
		return nil, err
	}
	s.setSessionCookie(w, r, token, expiresAt)
	return p, nil
}

func (s *Server) optionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.authenticate(w, r, requestToken(r))
		if err != nil {
			if !errors.Is(err, errNoSession) {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("session lookup failed, continuing anonymously")
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileCtxKey, p)))
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.authenticate(w, r, requestToken(r))
		if err != nil {
			if errors.Is(err, errNoSession) {
				httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			log.Error().Err(err).Msg("session lookup failed")
			httpx.WriteError(w, http.StatusInternalServerError, "Error validating session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), profileCtxKey, p)))
	})
}

// bodyProfile returns the caller from the request context, or authenticates
// the token a client sent in the JSON body. It writes the error response itself.
func (s *Server) bodyProfile(w http.ResponseWriter, r *http.Request, bodyToken string) (*store.Profile, bool) {
	if p, ok := profileFromContext(r.Context()); ok {
		return p, true
	}
	if strings.TrimSpace(bodyToken) == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	p, err := s.authenticate(w, r, bodyToken)
	if err != nil {
		if errors.Is(err, errNoSession) {
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid authentication token")
			return nil, false
		}
		log.Error().Err(err).Msg("session lookup failed")
		httpx.WriteError(w, http.StatusInternalServerError, "Error validating session")
		return nil, false
	}
	return p, true
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, p *store.Profile) (string, bool) {
	token, tokenSHA, err := newSessionToken()
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "Error creating session")
		return "", false
	}
	expiresAt := time.Now().Add(s.cfg.SessionTTL).Truncate(time.Second)

	ua := strings.TrimSpace(r.Header.Get("User-Agent"))
	if len(ua) > 250 {
		ua = ua[:250]
	}
	err = s.store.CreateSession(r.Context(), store.Session{
		TokenSHA256: tokenSHA,
		ProfileID:   p.ID,
		ExpiresAt:   expiresAt,
		IP:          clientIP(r),
		UserAgent:   ua,
	})
	if err != nil {
		log.Error().Err(err).Str("profile_id", p.ID).Msg("failed to store session")
		httpx.WriteError(w, http.StatusInternalServerError, "Error saving session")
		return "", false
	}
	s.setSessionCookie(w, r, token, expiresAt)
	return token, true
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		httpx.WriteError(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "Error hashing password")
		return
	}

	p := store.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateProfile(r.Context(), p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			httpx.WriteError(w, http.StatusConflict, "An account with this email already exists")
			return
		}
		log.Error().Err(err).Msg("failed to create profile")
		httpx.WriteError(w, http.StatusInternalServerError, "Error creating account")
		return
	}

	token, ok := s.startSession(w, r, &p)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   token,
		"user":    p,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	p, err := s.store.ProfileByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Error().Err(err).Msg("failed to load profile")
		httpx.WriteError(w, http.StatusInternalServerError, "Error reading user")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)); err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, ok := s.startSession(w, r, p)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    p,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Idempotent: always clear cookie.
	if token := requestToken(r); token != "" {
		if err := s.store.DeleteSession(r.Context(), sha256Hex(token)); err != nil {
			log.Warn().Err(err).Msg("failed to delete session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   sessionCookieSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := profileFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    p,
	})
}
