package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/model"
	"github.com/replydesk/server/internal/session"
)

type contextKey string

const (
	sessionKey    contextKey = "session"
	sessionKeyKey contextKey = "session_key"
)

// SessionLoader loads the session behind a cookie value
type SessionLoader interface {
	Session(ctx context.Context, key string) (model.Session, error)
}

// DecisionObserver receives every gate decision
type DecisionObserver interface {
	ObserveDecision(d auth.Decision)
}

// GateOption adjusts a single gated route
type GateOption func(*gateOptions)

type gateOptions struct {
	allowOnboarding bool
}

// AllowOnboarding lets a session that still needs onboarding through. Used
// on the onboarding view itself.
func AllowOnboarding() GateOption {
	return func(o *gateOptions) { o.allowOnboarding = true }
}

// Gatekeeper evaluates the route gate for every request
type Gatekeeper struct {
	loader   SessionLoader
	observer DecisionObserver
	logger   *slog.Logger
	now      func() time.Time
	secure   bool
}

// NewGatekeeper creates a Gatekeeper. observer may be nil.
func NewGatekeeper(loader SessionLoader, observer DecisionObserver, logger *slog.Logger, secureCookies bool) *Gatekeeper {
	return &Gatekeeper{
		loader:   loader,
		observer: observer,
		logger:   logger,
		now:      time.Now,
		secure:   secureCookies,
	}
}

// Gate redirects with 303 See Other when the session does not satisfy req,
// otherwise it attaches the session to the request context.
func (g *Gatekeeper) Gate(req auth.Requirement, opts ...GateOption) func(http.Handler) http.Handler {
	var o gateOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, sess := g.load(r)

			d := auth.Decide(req, sess, g.now())
			if d.Kind == auth.RedirectOnboarding && o.allowOnboarding {
				d = auth.Decision{Kind: auth.Allow}
			}
			if g.observer != nil {
				g.observer.ObserveDecision(d)
			}

			if d.Kind != auth.Allow {
				if d.Expired {
					ClearSessionCookie(w, g.secure)
				}
				g.logger.DebugContext(r.Context(), "gate redirect", "path", r.URL.Path, "decision", d.Kind.String())
				http.Redirect(w, r, d.Target(), http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), key, sess)))
		})
	}
}

// RequireSession is the JSON API variant of Gate: it answers 401 instead of
// redirecting when there is no live token.
func (g *Gatekeeper) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, sess := g.load(r)

		if !sess.HasToken() {
			respondWithError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if auth.IsExpired(sess.Token, g.now()) {
			ClearSessionCookie(w, g.secure)
			respondWithError(w, http.StatusUnauthorized, "session expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), key, sess)))
	})
}

// load never fails: a store error is logged and treated as no session
func (g *Gatekeeper) load(r *http.Request) (string, model.Session) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil || cookie.Value == "" {
		return "", model.Session{}
	}

	sess, err := g.loader.Session(r.Context(), cookie.Value)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "failed to load session", "error", err)
		return "", model.Session{}
	}
	return cookie.Value, sess
}

func withSession(ctx context.Context, key string, sess model.Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey, sess)
	return context.WithValue(ctx, sessionKeyKey, key)
}

// GetSession returns the session attached by Gate or RequireSession
func GetSession(ctx context.Context) (model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(model.Session)
	return s, ok
}

// GetSessionKey returns the session cookie value attached by Gate or RequireSession
func GetSessionKey(ctx context.Context) (string, bool) {
	k, ok := ctx.Value(sessionKeyKey).(string)
	return k, ok && k != ""
}

// SetSessionCookie hands the session key to the browser
func SetSessionCookie(w http.ResponseWriter, key string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
