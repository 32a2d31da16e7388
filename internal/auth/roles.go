package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireSession ensures a principal was attached by AuthMiddleware.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}

// RequireViewer ensures the principal holds one of the policy's viewer roles.
func RequireViewer(policy *Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !policy.IsViewer(principal.User.Role) {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
