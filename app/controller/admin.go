package controller

import (
	"net/http"

	httpdto "github.com/vibast-solutions/ms-go-identity/app/dto/http"
	"github.com/vibast-solutions/ms-go-identity/app/middleware"
	"github.com/vibast-solutions/ms-go-identity/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type AdminController struct {
	admin service.AdminService
}

func NewAdminController(admin service.AdminService) *AdminController {
	return &AdminController{admin: admin}
}

func (c *AdminController) ListUsers(ctx echo.Context) error {
	req, err := httpdto.NewListUsersRequestFromContext(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	page, err := c.admin.ListUsers(ctx.Request().Context(), req.Page, req.Limit)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, httpdto.NewResponse("Users fetched successfully", httpdto.NewUserPageResponse(page)))
}

func (c *AdminController) DeleteUser(ctx echo.Context) error {
	userID := ctx.Param("id")
	if userID == "" {
		return badRequest(ctx, "user id is required")
	}

	if err := c.admin.DeleteUser(ctx.Request().Context(), userID); err != nil {
		return respondError(ctx, err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"admin_id": adminID(ctx),
	}).Info("User deleted")
	return ctx.JSON(http.StatusOK, httpdto.NewResponse("User deleted successfully", nil))
}

func (c *AdminController) UpdateRole(ctx echo.Context) error {
	req, err := httpdto.NewUpdateRoleRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind update role request")
		return badRequest(ctx, "invalid request body")
	}

	if err = req.Validate(); err != nil {
		return badRequest(ctx, err.Error())
	}

	user, err := c.admin.SetRole(ctx.Request().Context(), req.UserID, req.Role)
	if err != nil {
		return respondError(ctx, err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"role":     user.Role,
		"admin_id": adminID(ctx),
	}).Info("User role updated")
	return ctx.JSON(http.StatusOK, httpdto.NewResponse("User role updated successfully", httpdto.NewUserResponse(user)))
}

func adminID(ctx echo.Context) string {
	if user := middleware.CurrentUser(ctx); user != nil {
		return user.ID
	}
	return ""
}
