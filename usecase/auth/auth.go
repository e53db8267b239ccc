// Package auth signs admins in against the admin_users table and maintains
// their Redis-backed sessions. Only active admin accounts may reach the
// dashboard and the reset action.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/internal/hashing"
	"github.com/doorcount/backend/repository"
)

type Config struct {
	JWTSecret string
	Issuer    string
	TTL       time.Duration
}

// LoginResult bundles everything the client needs after a sign-in.
type LoginResult struct {
	Token   string          `json:"token"`
	Session *domain.Session `json:"session"`
	User    *domain.User    `json:"user"`
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	cfg      Config
	logger   *zap.Logger
}

func New(users repository.UserRepository, sessions repository.SessionRepository, cfg Config, logger *zap.Logger) *UseCase {
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// Login verifies the email/password pair and, for active admins, creates a
// session and signs a JWT carrying the principal.
func (uc *UseCase) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := uc.users.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			// Same answer as a bad password so emails cannot be probed.
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := hashing.Verify(password, user.PasswordHash)
	if err != nil {
		uc.logger.Warn("password hash verification error", zap.String("user_id", user.ID), zap.Error(err))
		return nil, domain.ErrInvalidCredentials
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsAdmin() {
		return nil, domain.ErrNotAdmin
	}

	now := time.Now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.cfg.TTL),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	token, err := uc.signToken(session)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("admin signed in", zap.String("user_id", user.ID))
	return &LoginResult{Token: token, Session: session, User: user}, nil
}

// Logout revokes the session.
func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

// ValidateSession checks that the session referenced by a JWT still exists
// and has not expired. Revoked sessions invalidate otherwise-valid tokens.
// Each successful validation slides the Redis TTL forward so an admin working
// through a long night is not logged out mid-shift.
func (uc *UseCase) ValidateSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	if err := uc.sessions.Extend(ctx, sessionID, int(uc.cfg.TTL.Seconds())); err != nil {
		uc.logger.Warn("session extend failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return session, nil
}

// Profile returns the admin account behind an authenticated request.
func (uc *UseCase) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return uc.users.GetByID(ctx, userID)
}

func (uc *UseCase) signToken(session *domain.Session) (string, error) {
	claims := jwt.MapClaims{
		"user_id":    session.UserID,
		"session_id": session.ID,
		"role":       session.Role,
		"iss":        uc.cfg.Issuer,
		"exp":        session.ExpiresAt.Unix(),
		"iat":        session.CreatedAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(uc.cfg.JWTSecret))
}
