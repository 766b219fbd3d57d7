// Package http exposes the REST API, the websocket endpoint and the uploaded images.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"linkup/observability"
	"linkup/services"

	"github.com/gin-gonic/gin"
)

type Config struct {
	AllowedOrigins []string
	TokenDuration  time.Duration
	SecureCookies  bool
	MaxImageBytes  int64
	// UploadDir is served under /uploads when images are stored on disk. Empty disables it.
	UploadDir string
}

type Dependencies struct {
	AuthService      services.IAuthService
	MessageService   services.IMessageService
	DirectoryService services.IDirectoryService
	Monitoring       *observability.MonitoringManager
	Probe            func() error
	Realtime         http.Handler
}

// NewRouter wires every route. Handlers are stateless, all state lives in the services.
func NewRouter(log *slog.Logger, config Config, deps Dependencies) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log), corsPolicy(config.AllowedOrigins))

	authHandler := &AuthHandler{
		log:           log,
		authService:   deps.AuthService,
		tokenDuration: int(config.TokenDuration.Seconds()),
		secureCookies: config.SecureCookies,
	}
	messageHandler := &MessageHandler{
		log:              log,
		messageService:   deps.MessageService,
		directoryService: deps.DirectoryService,
	}
	systemHandler := &SystemHandler{log: log, monitoring: deps.Monitoring, probe: deps.Probe}
	authenticated := requireAuth(log, deps.AuthService)

	api := router.Group("/api", bodyLimit(config.MaxImageBytes))
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/check", authenticated, authHandler.Check)
		authGroup.PUT("/update-profile", authenticated, authHandler.UpdateProfile)

		messages := api.Group("/messages", authenticated)
		messages.GET("/users", messageHandler.Users)
		messages.GET("/search", messageHandler.Search)
		messages.GET("/chat/:userId", messageHandler.History)
		messages.POST("/send/:userId", messageHandler.Send)

		api.GET("/stats", systemHandler.Stats)
	}

	router.GET("/health", systemHandler.Health)
	router.GET("/ws", gin.WrapH(deps.Realtime))
	if config.UploadDir != "" {
		router.Static("/uploads", config.UploadDir)
	}
	router.NoRoute(systemHandler.NotFound)

	return router
}

// Server owns the HTTP listener lifecycle.
type Server struct {
	log    *slog.Logger
	server *http.Server
}

func NewServer(log *slog.Logger, handler http.Handler) *Server {
	return &Server{
		log: log,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	s.log.Info("Starting HTTP server", "address", listener.Addr().String())
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
