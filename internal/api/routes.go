package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jansahayak/agent/domain/entities"
	"github.com/jansahayak/agent/domain/repositories"
	"github.com/jansahayak/agent/internal/websocket"
	"github.com/jansahayak/agent/usecase"
)

// InitRoutes initializes all API routes.
func InitRoutes(e *echo.Echo, hub *websocket.Hub, driver *usecase.Driver, store repositories.ConversationStore, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "jansahayak-agent",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/state", func(c echo.Context) error {
		return c.JSON(http.StatusOK, driver.Snapshot())
	})

	v1.GET("/languages", func(c echo.Context) error {
		return c.JSON(http.StatusOK, LanguagesResponse{Languages: driver.Languages()})
	})

	v1.GET("/regions", func(c echo.Context) error {
		return c.JSON(http.StatusOK, RegionsResponse{Regions: driver.Regions()})
	})

	v1.GET("/schemes", func(c echo.Context) error {
		region := c.QueryParam("region")
		schemes := driver.Schemes()
		if region != "" {
			filtered := make([]entities.Scheme, 0, len(schemes))
			for _, s := range schemes {
				if s.Central() || s.Region == region {
					filtered = append(filtered, s)
				}
			}
			schemes = filtered
		}
		return c.JSON(http.StatusOK, SchemesResponse{Schemes: schemes})
	})

	v1.GET("/conversations", func(c echo.Context) error {
		summaries, err := store.Recent(c.Request().Context(), 20)
		if err != nil {
			logger.Error("list conversations failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Could not load conversation history",
			})
		}
		if summaries == nil {
			summaries = []entities.ConversationSummary{}
		}
		return c.JSON(http.StatusOK, SummariesResponse{Summaries: summaries})
	})

	// WebSocket endpoint for live state and user commands
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}
