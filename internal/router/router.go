// Package router wires HTTP routes to their handlers.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/duohabit/duohabit/internal/handler"
	"github.com/duohabit/duohabit/internal/middleware"
)

// RegisterPublic registers the endpoints reachable without a token:
// the health check and the auth entry points.
func RegisterPublic(e *echo.Echo, a *handler.AuthHandler) {
	e.GET("/health", handler.Health)

	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
}

// RegisterAPI registers every authenticated endpoint under /v1. All
// routes require a valid Bearer access token; row-level access rules
// live in the repository queries, not in the router.
func RegisterAPI(e *echo.Echo, jwtSecret string,
	a *handler.AuthHandler,
	p *handler.PartnerHandler,
	h *handler.HabitHandler,
	d *handler.HabitDetailHandler,
	n *handler.NoteHandler,
) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// ---- Account ----
	g.POST("/auth/logout", a.Logout)
	g.GET("/me", a.Me)
	g.PATCH("/me", a.UpdateMe)

	// ---- Pairing & partner ----
	g.GET("/partner", p.GetPartner)
	g.POST("/couple/code", p.CreateCode)
	g.POST("/couple/join", p.Join)
	g.DELETE("/couple", p.Disconnect)

	// ---- Habits ----
	g.GET("/habits", h.List)
	g.POST("/habits", h.Create)
	g.GET("/habits/:id", d.Get)
	g.PATCH("/habits/:id", h.Update)
	g.DELETE("/habits/:id", h.Delete)
	g.POST("/habits/:id/complete", h.Complete)
	g.DELETE("/habits/:id/completions/:completionID", h.Uncomplete)

	// ---- Notes ----
	g.GET("/notes/latest", n.Latest)
	g.POST("/notes", n.Send)
	g.POST("/notes/:id/read", n.MarkRead)
}
