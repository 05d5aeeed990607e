package router

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/market-alerts/internal/api/handlers/alert"
	"github.com/aliskhannn/market-alerts/internal/api/handlers/notification"
	"github.com/aliskhannn/market-alerts/internal/api/handlers/scan"
	"github.com/aliskhannn/market-alerts/internal/api/handlers/watch"
	"github.com/aliskhannn/market-alerts/internal/middlewares"
)

func New(
	alertHandler *alert.Handler,
	watchHandler *watch.Handler,
	notifHandler *notification.Handler,
	scanHandler *scan.Handler,
) *ginext.Engine {
	e := ginext.New()
	e.Use(middlewares.CORSMiddleware())
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	alerts := e.Group("/api/alerts")
	{
		alerts.POST("/", alertHandler.Create)
		alerts.GET("/", alertHandler.GetAll)
		alerts.DELETE("/:id", alertHandler.Deactivate)
	}

	watches := e.Group("/api/watches")
	{
		watches.POST("/", watchHandler.Create)
		watches.GET("/", watchHandler.GetAll)
		watches.PUT("/:id/settings", watchHandler.UpdateSettings)
		watches.DELETE("/:id", watchHandler.Deactivate)
		watches.GET("/:id/history", watchHandler.History)
	}

	notifications := e.Group("/api/notifications")
	{
		notifications.GET("/settings/:user_id", notifHandler.GetSettings)
		notifications.PUT("/settings/:user_id", notifHandler.UpdateSettings)
		notifications.GET("/stats/:user_id", notifHandler.GetStats)
	}

	e.POST("/api/scan", scanHandler.Trigger)

	e.GET("/metrics", func(c *ginext.Context) {
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})

	return e
}
