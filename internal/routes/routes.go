package routes

import (
	"github.com/gin-gonic/gin"

	"portalauth/internal/handlers"
	"portalauth/internal/middleware"
)

// Guards are the per-route middlewares built from config.
type Guards struct {
	Session gin.HandlerFunc
	CSRF    gin.HandlerFunc // nil when csrf is disabled
}

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	publicHandler *handlers.PublicHandler,
	guards Guards,
) *gin.Engine {
	r.GET("/healthz", publicHandler.Healthz)

	api := r.Group("/api")

	// ---- auth (public except /me)
	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.SignUp)
		auth.POST("/signin", authHandler.SignIn)
		auth.POST("/signout", authHandler.SignOut)
		auth.POST("/forgot", authHandler.ForgotPassword)
		auth.POST("/reset", authHandler.ResetPassword)
		auth.GET("/me", guards.Session, authHandler.Me)
	}

	// ---- admin
	adminChain := []gin.HandlerFunc{guards.Session}
	if guards.CSRF != nil {
		adminChain = append(adminChain, guards.CSRF)
	}
	adminChain = append(adminChain, middleware.RequireAdmin())
	admin := api.Group("/admin", adminChain...)
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.POST("/approve", adminHandler.Approve)
		admin.POST("/reject", adminHandler.Reject)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
	}

	// ---- public
	public := api.Group("/public")
	{
		public.POST("/contact-admin", publicHandler.ContactAdmin)
	}

	return r
}
