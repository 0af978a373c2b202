package middleware

import (
	"strings"

	"FalconFreight/Access"

	"github.com/gofiber/fiber/v2"
)

// IdentityKey is the Locals key holding the caller's Access.Identity.
const IdentityKey = "identity"

// Verify authenticates the caller from the "jwt" cookie or a bearer header.
// Role checks happen in the services, against the capability table.
func Verify(resolver Access.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("jwt")
		if token == "" {
			if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not Logged In.",
			})
		}

		who, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		c.Locals(IdentityKey, who)
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by Verify.
func CurrentIdentity(c *fiber.Ctx) (Access.Identity, bool) {
	who, ok := c.Locals(IdentityKey).(Access.Identity)
	return who, ok
}
