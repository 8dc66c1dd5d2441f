package server

import (
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/server/middleware"
	"github.com/OFFIS-RIT/pdf2bpmn/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Document routes
	apiRoutes.POST("/documents", routes.UploadDocumentHandler, middleware.RequirePermission(middleware.PermDocumentCreate))
	apiRoutes.POST("/documents/:id/convert", routes.ConvertDocumentHandler, middleware.RequirePermission(middleware.PermDocumentConvert))
	apiRoutes.GET("/documents/:id/status", routes.GetDocumentStatusHandler, middleware.RequirePermission(middleware.PermDocumentView))
	apiRoutes.GET("/documents/:id/processes", routes.GetDocumentProcessesHandler, middleware.RequirePermission(middleware.PermDocumentView))
	apiRoutes.GET("/documents/:id/ambiguities", routes.GetDocumentAmbiguitiesHandler, middleware.RequirePermission(middleware.PermAmbiguityView, middleware.PermAmbiguityResolve))

	// Ambiguity routes
	apiRoutes.GET("/ambiguities/:id", routes.GetAmbiguityHandler, middleware.RequirePermission(middleware.PermAmbiguityView, middleware.PermAmbiguityResolve))
	apiRoutes.POST("/ambiguities/:id/resolve", routes.ResolveAmbiguityHandler, middleware.RequirePermission(middleware.PermAmbiguityResolve))
}
