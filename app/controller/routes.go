package controller

import (
	"github.com/vibast-solutions/ms-go-identity/app/middleware"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, users *UserController, admin *AdminController, auth *middleware.AuthMiddleware, limiter *middleware.RateLimiter) {
	api := e.Group("/api/v1")

	public := api.Group("/users")
	public.POST("/register", users.Register)
	public.POST("/login", users.Login, limiter.Limit)
	public.POST("/refresh-token", users.RefreshToken)
	public.POST("/forgot-password", users.ForgotPassword, limiter.Limit)
	public.POST("/reset-password/:token", users.ResetPassword)

	protected := api.Group("/users", auth.RequireAuth)
	protected.POST("/logout", users.Logout)
	protected.POST("/change-password", users.ChangePassword)
	protected.GET("/current-user", users.CurrentUser)
	protected.PATCH("/update-account", users.UpdateAccount)
	protected.PATCH("/avatar", users.UpdateAvatar)
	protected.PATCH("/cover-image", users.UpdateCoverImage)

	adminGroup := api.Group("/admin", auth.RequireAuth, auth.RequireAdmin)
	adminGroup.GET("/users", admin.ListUsers)
	adminGroup.DELETE("/user/:id", admin.DeleteUser)
	adminGroup.PATCH("/user/:id/role", admin.UpdateRole)
}
