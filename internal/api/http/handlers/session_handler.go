package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticketdesk/internal/api/dto"
	"github.com/spec-kit/ticketdesk/internal/auth"
	"github.com/spec-kit/ticketdesk/internal/service"
	apperrors "github.com/spec-kit/ticketdesk/pkg/util"
)

// IssuerKeyHeader carries the shared key of the upstream login system.
const IssuerKeyHeader = "X-Issuer-Key"

// SessionHandler issues and revokes sessions.
type SessionHandler struct {
	sessions     *service.SessionService
	cookieSecure bool
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions *service.SessionService, cookieSecure bool) *SessionHandler {
	return &SessionHandler{sessions: sessions, cookieSecure: cookieSecure}
}

// Open POST /session.
func (h *SessionHandler) Open(c *fiber.Ctx) error {
	if err := h.sessions.VerifyIssuer(c.Get(IssuerKeyHeader)); err != nil {
		return err
	}
	var req dto.SessionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	session, token, err := h.sessions.Open(c.UserContext(), req.UserDetails.ToSessionUser())
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.SessionResponse{
		Token:     token,
		SessionID: session.ID,
		EmpID:     session.User.EmpID,
		Role:      session.User.Role,
		Name:      session.User.Name,
		ExpiresAt: session.ExpiresAt,
	}})
}

// Close DELETE /session.
func (h *SessionHandler) Close(c *fiber.Ctx) error {
	principal, err := principalOf(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Close(c.UserContext(), principal.SessionID); err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.SendStatus(http.StatusNoContent)
}
