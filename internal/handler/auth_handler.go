package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/kvxlabs/vanguard/internal/domain"
	"github.com/kvxlabs/vanguard/internal/middleware"
	"github.com/kvxlabs/vanguard/internal/port"
	"github.com/kvxlabs/vanguard/internal/service"
)

const minPasswordLength = 6

// AuthHandler handles registration, login, logout, and the current-user
// endpoint. Sessions travel as an httpOnly cookie holding the session token.
type AuthHandler struct {
	authService *service.AuthService
	store       port.Store
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService *service.AuthService, store port.Store) *AuthHandler {
	return &AuthHandler{authService: authService, store: store}
}

// RegisterPublic sets up the unauthenticated auth routes.
func (h *AuthHandler) RegisterPublic(app *fiber.App) {
	auth := app.Group("/api/auth")
	auth.Post("/register", h.SignUp)
	auth.Post("/login", h.Login)
}

// RegisterProtected sets up the auth routes requiring a session.
func (h *AuthHandler) RegisterProtected(api fiber.Router) {
	auth := api.Group("/auth")
	auth.Post("/logout", h.Logout)
	auth.Get("/user", h.CurrentUser)
}

type credentialsBody struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SignUp creates a new account and logs it in.
func (h *AuthHandler) SignUp(c fiber.Ctx) error {
	var body credentialsBody
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	body.Email = strings.TrimSpace(body.Email)
	if body.Email == "" || !strings.Contains(body.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "a valid email is required"})
	}
	if len(body.Password) < minPasswordLength {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "password must be at least 6 characters"})
	}

	user, session, err := h.authService.Register(c.Context(), body.Email, body.Password, body.FirstName, body.LastName)
	if errors.Is(err, port.ErrEmailTaken) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email already registered"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	setSessionCookie(c, session)
	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body credentialsBody
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	user, session, err := h.authService.Login(c.Context(), body.Email, body.Password)
	if errors.Is(err, port.ErrInvalidCredentials) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid email or password"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	setSessionCookie(c, session)
	return c.JSON(user)
}

// Logout deletes the session and clears the cookie.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	if token := c.Cookies(middleware.SessionCookie); token != "" {
		if err := h.authService.Logout(c.Context(), token); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}
	clearSessionCookie(c)
	return c.JSON(fiber.Map{"ok": true})
}

// CurrentUser returns the authenticated user.
func (h *AuthHandler) CurrentUser(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	user, err := h.store.GetUserByID(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.JSON(user)
}

func setSessionCookie(c fiber.Ctx, session *domain.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func clearSessionCookie(c fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		Path:     "/",
		HTTPOnly: true,
		SameSite: "Lax",
	})
}
