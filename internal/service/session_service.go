package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/config"
	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// SessionService issues and revokes sessions for users authenticated by the
// upstream login system.
type SessionService struct {
	sessions      repository.SessionStore
	tokenMgr      *auth.TokenManager
	issuerKeyHash string
	now           func() time.Time
}

// NewSessionService builds the service.
func NewSessionService(cfg config.AuthConfig, sessions repository.SessionStore) *SessionService {
	return &SessionService{
		sessions:      sessions,
		tokenMgr:      auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL()),
		issuerKeyHash: cfg.IssuerKeyHash,
		now:           time.Now,
	}
}

// VerifyIssuer checks the key presented by the upstream login system.
func (s *SessionService) VerifyIssuer(key string) error {
	if s.issuerKeyHash == "" {
		return apperrors.NewForbidden("session issuing is disabled")
	}
	if key == "" || auth.VerifyIssuerKey(s.issuerKeyHash, key) != nil {
		return apperrors.NewUnauthorized("invalid issuer key")
	}
	return nil
}

// Open stores a session for user and returns it with its signed token.
func (s *SessionService) Open(ctx context.Context, user domain.SessionUser) (*domain.Session, string, error) {
	user.EmpID = strings.TrimSpace(user.EmpID)
	user.Role = domain.Role(strings.TrimSpace(string(user.Role)))
	if user.EmpID == "" || user.Role == "" {
		return nil, "", apperrors.NewValidationError("EmpId and Role required", nil)
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		User:      user,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenMgr.TTL()),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, "", apperrors.NewUnavailable("session store", err)
	}
	token, err := s.tokenMgr.GenerateToken(session)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	return session, token, nil
}

// Close revokes a session. Closing an unknown session is not an error.
func (s *SessionService) Close(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewUnavailable("session store", err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *SessionService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
