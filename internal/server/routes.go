package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/auth"
)

// RegisterRoutes builds the echo router for the pipeline API.
func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.GET("/health", s.healthHandler)
	e.GET("/metrics", s.metrics.Handler())

	api := e.Group("/api")
	if auth.Enabled() {
		api.Use(auth.RequireAuth)
	}

	api.POST("/symptoms/identify", s.identifyHandler)
	api.POST("/consult", s.consultHandler)
	api.POST("/remedies", s.remediesHandler)
	api.POST("/medicines", s.medicinesHandler)
	api.POST("/prescriptions/analyze", s.prescriptionHandler)
	api.GET("/history", s.historyHandler)

	return e
}

// healthHandler reports server liveness plus database pool health when the
// history store is enabled.
func (s *Server) healthHandler(c echo.Context) error {
	status := map[string]any{"status": "up"}
	if s.db != nil {
		status["database"] = s.db.Health()
	}
	return c.JSON(http.StatusOK, status)
}
