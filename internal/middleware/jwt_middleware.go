package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/models"
	"selfcheckout/internal/services"
)

const userKey = "user"

// AuthRequired is a Fiber middleware that resolves the bearer credential to an active
// user and stores it in the request context.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperr.Unauthorized("Authorization header is required")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return apperr.Unauthorized("Authorization header format must be 'Bearer <token>'")
		}

		user, err := authService.Authenticate(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			return err
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// RequireRoles allows the request through only when the authenticated user holds one of
// roles. It must run after AuthRequired.
func RequireRoles(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return apperr.Unauthorized("Authentication required")
		}
		if !user.HasRole(roles...) {
			return apperr.Forbidden("You do not have permission to perform this action")
		}
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}
