package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/port"
)

// SessionCookie is the name of the login session cookie.
const SessionCookie = "vanguard_session"

// SessionMiddleware creates a Fiber middleware that resolves the session
// cookie against the store and injects a UserContext into the request
// context. Requests without a valid, unexpired session get a 401.
func SessionMiddleware(store port.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "not authenticated",
			})
		}

		session, err := store.GetSession(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "not authenticated",
			})
		}
		if session.Expired() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "session expired",
			})
		}

		user, err := store.GetUserByID(c.Context(), session.UserID)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "not authenticated",
			})
		}

		c.Locals("user", &domain.UserContext{
			UserID: user.ID,
			Email:  user.Email,
		})

		return c.Next()
	}
}

// GetUserContext extracts the UserContext from Fiber locals.
func GetUserContext(c fiber.Ctx) *domain.UserContext {
	u, ok := c.Locals("user").(*domain.UserContext)
	if !ok {
		return nil
	}
	return u
}
