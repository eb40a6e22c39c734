package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/replydesk/server/internal/model"
	"github.com/replydesk/server/internal/session"
)

var (
	// ErrDevModeDisabled is returned by DevLogin outside DEV_MODE
	ErrDevModeDisabled = errors.New("dev login is disabled")
	// ErrSessionExpired is returned when an operation needs a live token
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidCredentials is returned when the backend accepts a login but issues no token
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Backend is the part of the external API the auth service calls
type Backend interface {
	Login(ctx context.Context, email, password string) (token string, profile model.UserProfile, err error)
	Profile(ctx context.Context, token string) (model.UserProfile, error)
}

// DevLoginParams describes the synthetic session created by DevLogin
type DevLoginParams struct {
	Email          string
	Role           string
	WhatsAppStatus string
}

// Service orchestrates the portal session lifecycle
type Service struct {
	store   session.Store
	backend Backend
	jwt     *JWTService
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new auth service. jwtService may be nil when DEV_MODE is off.
func NewService(store session.Store, backend Backend, jwtService *JWTService, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		backend: backend,
		jwt:     jwtService,
		logger:  logger,
		now:     time.Now,
	}
}

// Login authenticates against the backend and stores a new session. It
// returns the session key to hand to the client as a cookie.
func (s *Service) Login(ctx context.Context, email, password string) (string, model.Session, error) {
	token, profile, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return "", model.Session{}, fmt.Errorf("backend login: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return "", model.Session{}, ErrInvalidCredentials
	}

	sess := model.Session{Token: token, Profile: &profile}
	key, err := s.create(ctx, sess)
	if err != nil {
		return "", model.Session{}, err
	}

	s.logger.InfoContext(ctx, "session created",
		"user_type", profile.UserType,
		"has_business", profile.Business != nil,
	)
	return key, sess, nil
}

// DevLogin mints a local token and stores a synthetic session. Only available in DEV_MODE.
func (s *Service) DevLogin(ctx context.Context, p DevLoginParams) (string, model.Session, error) {
	if s.jwt == nil {
		return "", model.Session{}, ErrDevModeDisabled
	}

	token, err := s.jwt.SignToken(p.Email, p.Role)
	if err != nil {
		return "", model.Session{}, fmt.Errorf("sign dev token: %w", err)
	}

	profile := &model.UserProfile{Email: p.Email, UserType: p.Role}
	if p.WhatsAppStatus != "" {
		profile.Business = &model.Business{Name: "Dev Business", WhatsAppStatus: p.WhatsAppStatus}
	}

	sess := model.Session{Token: token, Profile: profile}
	key, err := s.create(ctx, sess)
	if err != nil {
		return "", model.Session{}, err
	}

	s.logger.WarnContext(ctx, "dev session created", "role", p.Role)
	return key, sess, nil
}

// Session loads the session for key. A missing session is returned as an
// empty session. A session whose token has expired is cleared from the store
// but still returned, so the gate can tell expiry apart from absence.
func (s *Service) Session(ctx context.Context, key string) (model.Session, error) {
	if key == "" {
		return model.Session{}, nil
	}

	sess, err := s.store.Get(ctx, key)
	if errors.Is(err, session.ErrNotFound) {
		return model.Session{}, nil
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("load session: %w", err)
	}

	if sess.HasToken() && IsExpired(sess.Token, s.now()) {
		if err := s.store.Clear(ctx, key); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear expired session", "error", err)
		}
	}
	return sess, nil
}

// Refresh re-fetches the cached profile from the backend
func (s *Service) Refresh(ctx context.Context, key string) (model.Session, error) {
	sess, err := s.Session(ctx, key)
	if err != nil {
		return model.Session{}, err
	}
	if !sess.HasToken() || IsExpired(sess.Token, s.now()) {
		return model.Session{}, ErrSessionExpired
	}

	profile, err := s.backend.Profile(ctx, sess.Token)
	if err != nil {
		return model.Session{}, fmt.Errorf("refresh profile: %w", err)
	}

	sess.Profile = &profile
	if err := s.store.Set(ctx, key, sess); err != nil {
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

// Logout destroys the session under key
func (s *Service) Logout(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Service) create(ctx context.Context, sess model.Session) (string, error) {
	key, err := session.NewKey()
	if err != nil {
		return "", fmt.Errorf("generate session key: %w", err)
	}
	if err := s.store.Set(ctx, key, sess); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return key, nil
}
