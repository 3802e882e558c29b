package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"circles/internal/models"

	"github.com/gofiber/fiber/v2"
)

// SessionAuthenticator resolves an opaque session token to its user.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Locals keys set by SessionRequired.
const (
	LocalUserID = "userID"
	LocalUser   = "user"
)

// SessionToken extracts the session token from the cookie, falling back to an
// "Authorization: Bearer <token>" header for non-browser clients.
func SessionToken(c *fiber.Ctx, cookieName string) string {
	if token := c.Cookies(cookieName); token != "" {
		return token
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// SessionRequired enforces a valid session for protected routes. On success
// the user id and user are stored in Fiber locals and the user id in the
// request context.
func SessionRequired(auth SessionAuthenticator, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.Authenticate(c.UserContext(), SessionToken(c, cookieName))
		if err != nil {
			return writeAuthError(c, err)
		}

		c.Locals(LocalUserID, user.ID)
		c.Locals(LocalUser, user)
		c.SetUserContext(WithUserID(c.UserContext(), user.ID))

		return c.Next()
	}
}

func writeAuthError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code == models.CodeInternal {
		Logger.ErrorContext(c.UserContext(), "session lookup failed", slog.String("error", err.Error()))
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "Internal server error",
			Code:  models.CodeInternal,
		})
	}
	return c.Status(appErr.HTTPStatus()).JSON(models.ErrorResponse{
		Error: appErr.Message,
		Code:  appErr.Code,
	})
}
