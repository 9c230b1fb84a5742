package controller

import (
	"context"
	"net/http"

	"github.com/vibast-solutions/ms-go-identity/app/dto"
	httpdto "github.com/vibast-solutions/ms-go-identity/app/dto/http"
	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/middleware"
	"github.com/vibast-solutions/ms-go-identity/app/service"
	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const RefreshTokenName = "refreshToken"

type UserController struct {
	sessions service.SessionService
	accounts service.AccountService
	cfg      *config.Config
}

func NewUserController(sessions service.SessionService, accounts service.AccountService, cfg *config.Config) *UserController {
	return &UserController{
		sessions: sessions,
		accounts: accounts,
		cfg:      cfg,
	}
}

func (c *UserController) Register(ctx echo.Context) error {
	req, err := httpdto.NewRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return badRequest(ctx, "invalid request body")
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("username", req.Username).Debug("Register validation failed")
		return badRequest(ctx, err.Error())
	}

	user, err := c.accounts.Register(ctx.Request().Context(), req.Input())
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, httpdto.NewResponse("User registered successfully", httpdto.NewUserResponse(user)))
}

func (c *UserController) Login(ctx echo.Context) error {
	req, err := httpdto.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return badRequest(ctx, "invalid request body")
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Login validation failed")
		return badRequest(ctx, err.Error())
	}

	result, err := c.sessions.Login(ctx.Request().Context(), req.Identifier(), req.Password)
	if err != nil {
		return respondError(ctx, err)
	}

	c.setSessionCookies(ctx, &result.TokenPair)
	return ctx.JSON(http.StatusOK, httpdto.NewResponse("User logged in successfully", &httpdto.LoginResponse{
		User:         httpdto.NewUserResponse(result.User),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}))
}

func (c *UserController) Logout(ctx echo.Context) error {
	user := middleware.CurrentUser(ctx)
	if user == nil {
		return respondError(ctx, service.ErrMissingIdentity)
	}

	if err := c.sessions.Logout(ctx.Request().Context(), user.ID); err != nil {
		return respondError(ctx, err)
	}

	c.clearSessionCookies(ctx)
	return ctx.JSON(http.StatusOK, httpdto.NewResponse("User logged out", nil))
}

func (c *UserController) RefreshToken(ctx echo.Context) error {
	req, err := httpdto.NewRefreshTokenRequestFromContext(ctx, RefreshTokenName)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind refresh token request")
		return badRequest(ctx, "invalid request body")
	}

	pair, err := c.sessions.RefreshAccess(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		return respondError(ctx, err)
	}

	c.setSessionCookies(ctx, pair)
	return ctx.JSON(http.StatusOK, httpdto.NewResponse("Access token refreshed", &httpdto.RefreshTokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}))
}

func (c *UserController) ChangePassword(ctx echo.Context) error {
	req, err := httpdto.NewChangePasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind change password request")
		return badRequest(ctx, "invalid request body")
	}

	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	user := middleware.CurrentUser(ctx)
	if user == nil {
		return respondError(ctx, service.ErrMissingIdentity)
	}

	if err = c.sessions.ChangePassword(ctx.Request().Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		return respondError(ctx, err)
	}

	if c.cfg.Password.RevokeSessionsOnChange {
		c.clearSessionCookies(ctx)
	}
	return ctx.JSON(http.StatusOK, httpdto.NewResponse("Password changed successfully", nil))
}

func (c *UserController) ForgotPassword(ctx echo.Context) error {
	req, err := httpdto.NewForgotPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return badRequest(ctx, "invalid request body")
	}

	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	if err = c.sessions.ForgotPassword(ctx.Request().Context(), req.Email); err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, httpdto.NewResponse("Password reset link sent to your email", nil))
}

func (c *UserController) ResetPassword(ctx echo.Context) error {
	req, err := httpdto.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return badRequest(ctx, "invalid request body")
	}

	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	if err = c.sessions.ResetPassword(ctx.Request().Context(), req.Token, req.Password); err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, httpdto.NewResponse("Password reset successful", nil))
}

func (c *UserController) CurrentUser(ctx echo.Context) error {
	identity := middleware.CurrentUser(ctx)
	if identity == nil {
		return respondError(ctx, service.ErrMissingIdentity)
	}

	user, err := c.accounts.CurrentUser(ctx.Request().Context(), identity.ID)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, httpdto.NewResponse("Current user fetched successfully", httpdto.NewUserResponse(user)))
}

func (c *UserController) UpdateAccount(ctx echo.Context) error {
	req, err := httpdto.NewUpdateAccountRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind update account request")
		return badRequest(ctx, "invalid request body")
	}

	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	identity := middleware.CurrentUser(ctx)
	if identity == nil {
		return respondError(ctx, service.ErrMissingIdentity)
	}

	user, err := c.accounts.UpdateAccount(ctx.Request().Context(), identity.ID, req.FullName, req.Email)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, httpdto.NewResponse("Account details updated successfully", httpdto.NewUserResponse(user)))
}

func (c *UserController) UpdateAvatar(ctx echo.Context) error {
	return c.updateImage(ctx, "avatar", "Avatar image updated successfully", c.accounts.UpdateAvatar)
}

func (c *UserController) UpdateCoverImage(ctx echo.Context) error {
	return c.updateImage(ctx, "coverImage", "Cover image updated successfully", c.accounts.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, userID string, file *dto.Upload) (*entity.User, error)

func (c *UserController) updateImage(ctx echo.Context, field, message string, update imageUpdater) error {
	identity := middleware.CurrentUser(ctx)
	if identity == nil {
		return respondError(ctx, service.ErrMissingIdentity)
	}

	file, err := httpdto.NewUploadFromContext(ctx, field)
	if err != nil {
		logrus.WithError(err).WithField("field", field).Debug("Failed to read upload")
		return badRequest(ctx, "invalid request body")
	}

	user, err := update(ctx.Request().Context(), identity.ID, file)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, httpdto.NewResponse(message, httpdto.NewUserResponse(user)))
}

func (c *UserController) setSessionCookies(ctx echo.Context, pair *dto.TokenPair) {
	cookies := c.cfg.Cookie
	ctx.SetCookie(sessionCookie(middleware.AccessTokenName, pair.AccessToken, c.cfg.JWT.AccessTokenTTL, cookies.Secure, cookies.Domain))
	ctx.SetCookie(sessionCookie(RefreshTokenName, pair.RefreshToken, c.cfg.JWT.RefreshTokenTTL, cookies.Secure, cookies.Domain))
}

func (c *UserController) clearSessionCookies(ctx echo.Context) {
	cookies := c.cfg.Cookie
	ctx.SetCookie(sessionCookie(middleware.AccessTokenName, "", 0, cookies.Secure, cookies.Domain))
	ctx.SetCookie(sessionCookie(RefreshTokenName, "", 0, cookies.Secure, cookies.Domain))
}
