package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/config"
	"chat-relay/internal/infrastructure/logger"
	"chat-relay/internal/interfaces/httpserver/handlers/relayhandler"
	middleware "chat-relay/internal/interfaces/httpserver/middlewares"
)

type HTTPServer struct {
	engine       *gin.Engine
	relayHandler *relayhandler.RelayHandler
	config       *config.Config
}

func NewHttpServer(
	relayHandler *relayhandler.RelayHandler,
	cfg *config.Config,
) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)
	server := HTTPServer{
		gin.New(),
		relayHandler,
		cfg,
	}
	server.engine.Use(middleware.RequestID())
	server.engine.Use(middleware.TracingMiddleware(cfg.ServiceName))
	server.engine.Use(middleware.LoggingMiddleware(logger.GetLogger()))
	server.engine.Use(middleware.MetricsMiddleware())
	server.engine.Use(middleware.CORSMiddleware())

	server.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server.engine.GET("/readyz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	v1 := server.engine.Group("/v1")
	v1.POST("/chat/stream", relayHandler.StreamChat)

	return &server
}

// Engine exposes the router for in-process tests.
func (httpServer *HTTPServer) Engine() *gin.Engine {
	return httpServer.engine
}

func (httpServer *HTTPServer) Run() error {
	if err := httpServer.engine.Run(fmt.Sprintf(":%d", httpServer.config.HTTPPort)); err != nil {
		return err
	}
	return nil
}
