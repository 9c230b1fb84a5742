package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	httpdto "github.com/vibast-solutions/ms-go-identity/app/dto/http"
	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	ContextKeyUser  = "user"
	AccessTokenName = "accessToken"
)

type authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*entity.User, error)
}

type AuthMiddleware struct {
	sessions authenticator
}

func NewAuthMiddleware(sessions authenticator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// RequireAuth reads the access token from the accessToken cookie, falling back
// to an Authorization bearer header, and attaches the user to the context.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := accessTokenFrom(c)

		user, err := m.sessions.Authenticate(c.Request().Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMissingToken):
				logrus.Debug("Missing access token")
				return c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse(service.ErrMissingToken.Error()))
			case errors.Is(err, service.ErrUnauthorized):
				logrus.Debug("Invalid or expired access token")
				return c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse(service.ErrUnauthorized.Error()))
			default:
				logrus.WithError(err).Error("Access token authentication failed")
				return c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal server error"))
			}
		}

		c.Set(ContextKeyUser, user)
		return next(c)
	}
}

// RequireAdmin must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			logrus.WithError(service.ErrMissingIdentity).WithField("path", c.Path()).Error("Admin route mounted without authentication")
			return c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal server error"))
		}
		if !user.IsAdmin() {
			logrus.WithField("user_id", user.ID).Warn("Admin access denied")
			return c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(service.ErrForbidden.Error()))
		}

		return next(c)
	}
}

// CurrentUser returns the user attached by RequireAuth, or nil.
func CurrentUser(c echo.Context) *entity.User {
	user, _ := c.Get(ContextKeyUser).(*entity.User)
	return user
}

func accessTokenFrom(c echo.Context) string {
	if cookie, err := c.Cookie(AccessTokenName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	parts := strings.Fields(c.Request().Header.Get(echo.HeaderAuthorization))
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}
