// Package http provides the HTTP server of the model router.
package http

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/modelrouter/internal/service"
	"github.com/xiaot623/gogo/modelrouter/internal/transport/http/api"
	"github.com/xiaot623/gogo/modelrouter/internal/transport/ws"
)

// NewServer creates and configures the HTTP server.
// It serves the chat API, the metrics endpoint and the websocket chat.
func NewServer(svc *service.Service, wsServer *ws.Server, maxUploadBytes int64, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.RequestID != "" {
				fields = append(fields, zap.String("request_id", v.RequestID))
			}
			if v.Error != nil {
				logger.Error("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	if maxUploadBytes > 0 {
		// Leave room for the multipart envelope around the file.
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", maxUploadBytes/1024+64)))
	}

	// Handlers
	apiHandler := api.NewHandler(svc)
	apiHandler.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(svc.Metrics().Registry(), promhttp.HandlerOpts{})))

	if wsServer != nil {
		e.GET("/ws", wsServer.HandleWebSocket)
	}

	return e
}
