// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/serveis-extraordinaris/backend/internal/handler"
	"github.com/serveis-extraordinaris/backend/internal/middleware"
	"github.com/serveis-extraordinaris/backend/internal/model"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Auth     *handler.AuthHandler
	Empreses *handler.EmpresaHandler

	// Authn rejects requests without a valid bearer token; OptionalAuthn
	// attaches an identity when one is present but never rejects.
	Authn         echo.MiddlewareFunc
	OptionalAuthn echo.MiddlewareFunc
	RateLimit     echo.MiddlewareFunc
}

// Register wires all routes under /api/v1 plus the health probe.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	api := e.Group("/api/v1")

	// Auth endpoints are the brute-force target, so the limiter sits on
	// this group.  OptionalAuthn runs first so the limiter can key by
	// identity for callers that do present a token.
	auth := api.Group("/auth", d.OptionalAuthn, d.RateLimit)
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout)
	auth.POST("/logout-all", d.Auth.LogoutAll, d.Authn)
	auth.GET("/me", d.Auth.Me, d.Authn)
	auth.GET("/sessions", d.Auth.Sessions, d.Authn)

	// Employer CRUD: any authenticated, active role; ownership scoping in
	// the service layer is the real authorization.
	emp := api.Group("/empreses", d.Authn,
		middleware.RequireRole(model.RoleAdmin, model.RoleTechnician, model.RoleUser))
	emp.GET("", d.Empreses.List)
	emp.POST("", d.Empreses.Create)
	emp.GET("/:id", d.Empreses.Get)
	emp.PUT("/:id", d.Empreses.Update)
	emp.DELETE("/:id", d.Empreses.Delete)
	emp.PATCH("/:id/finalitzar", d.Empreses.End)
}
