package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/services"
)

const principalKey = "principal"

// TokenParser verifies a bearer token and returns the caller.
type TokenParser interface {
	ParseToken(token string) (*services.Principal, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's Principal in the request locals.
func RequireAuth(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return failure(c, fiber.StatusUnauthorized, "Missing Authorization header")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return failure(c, fiber.StatusUnauthorized, "Invalid Authorization header format")
		}

		principal, err := tokens.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"path": c.Path(),
				"ip":   c.IP(),
			}).Debug("Rejected bearer token")
			return failure(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !currentPrincipal(c).IsAdmin() {
			return failure(c, fiber.StatusForbidden, "Admin access required")
		}
		return c.Next()
	}
}

// RequireBidPermission lets admins and sub-brokers with bid permission through.
func RequireBidPermission() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal := currentPrincipal(c)
		if !principal.IsAdmin() && !principal.BidPermission {
			return failure(c, fiber.StatusForbidden, "Bid permission required")
		}
		return c.Next()
	}
}

// currentPrincipal returns the caller set by RequireAuth, or a zero
// Principal that is neither admin nor permitted to bid.
func currentPrincipal(c *fiber.Ctx) services.Principal {
	if principal, ok := c.Locals(principalKey).(*services.Principal); ok && principal != nil {
		return *principal
	}
	return services.Principal{}
}
