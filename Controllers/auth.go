package Controllers

import (
	"context"
	"net/http"
	"time"

	"FalconFreight/Models"

	"github.com/gofiber/fiber/v2"
)

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(user Models.User) (string, time.Time, error)
}

// UserDirectory finds users by login email and by id.
type UserDirectory interface {
	UserByEmail(ctx context.Context, email string) (Models.User, error)
	UserByID(ctx context.Context, id uint) (Models.User, error)
}

type AuthHandler struct {
	Users  UserDirectory
	Tokens TokenIssuer
}

func NewAuthHandler(users UserDirectory, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{Users: users, Tokens: tokens}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks the credentials and sets the "jwt" cookie. The token is also
// returned in the body for clients that send it as a bearer header.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	user, err := h.Users.UserByEmail(c.UserContext(), req.Email)
	if err != nil && !Models.IsNotFound(err) {
		return respondError(c, err)
	}
	if err != nil || !user.CheckPassword(req.Password) {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
			"message": "Incorrect email or password",
		})
	}

	token, expires, err := h.Tokens.Issue(user)
	if err != nil {
		return respondError(c, err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Logged in",
		"data": fiber.Map{
			"token":      token,
			"expires_at": expires,
			"user":       user,
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Logged out",
	})
}

// Me returns the logged in user with their current role.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	who := identity(c)
	user, err := h.Users.UserByID(c.UserContext(), who.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "User retrieved successfully",
		"data":    user,
	})
}
