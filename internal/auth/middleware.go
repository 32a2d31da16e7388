package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/domain"
	"github.com/spec-kit/ticketdesk/internal/repository"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

const (
	principalKey = "auth_principal"

	// SessionCookie carries the session token for browser requests.
	SessionCookie = "ticketdesk_session"
)

// Principal represents the signed-in session user.
type Principal struct {
	SessionID string
	User      domain.SessionUser
}

// AuthMiddleware validates session tokens and loads the session user.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions repository.SessionStore
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions repository.SessionStore) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions}
}

// Handle enforces a live session for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := tokenFromRequest(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid session token")
	}

	session, err := m.sessions.Get(c.UserContext(), claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("session expired")
		}
		return apperrors.NewUnavailable("session store", err)
	}
	if session.User.EmpID != claims.EmpID || session.User.Role != claims.Role {
		return apperrors.NewUnauthorized("session does not match token")
	}

	c.Locals(principalKey, &Principal{SessionID: session.ID, User: session.User})
	return c.Next()
}

// PrincipalFromContext retrieves the signed-in session user.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func tokenFromRequest(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return parts[1], nil
	}
	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie, nil
	}
	return "", apperrors.NewUnauthorized("missing session")
}
