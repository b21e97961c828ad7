package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskpilot/taskpilot/pkg/auth"
	"github.com/taskpilot/taskpilot/pkg/config"
	"github.com/taskpilot/taskpilot/pkg/db"
	"github.com/taskpilot/taskpilot/pkg/handler"
	"github.com/taskpilot/taskpilot/pkg/service"
	"github.com/taskpilot/taskpilot/pkg/tools"
	_ "github.com/taskpilot/taskpilot/pkg/tools/all"
	"github.com/taskpilot/taskpilot/pkg/utils"
	"gorm.io/gorm"
)

type Server struct {
	ginEngine *gin.Engine
	cfg       *config.Config
	logger    *slog.Logger
	port      int
}

func NewServer(cfg *config.Config, gdb *gorm.DB) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow common localhost dev origins. Requests without
	// an Origin header are not browser CORS requests and pass through.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			allowed := strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1")
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	server := &Server{
		ginEngine: ginEngine,
		cfg:       cfg,
		logger:    utils.GetLogger(),
	}

	server.SetupRoutes(gdb)

	return server
}

func (s *Server) SetupRoutes(gdb *gorm.DB) {
	taskService := service.NewTaskService(gdb)
	conversationService := service.NewConversationService(gdb)

	// The chat service is optional: if the model cannot be constructed the
	// rest of the API still serves, and the chat endpoint answers 503.
	var chatService *service.ChatService
	agentService, err := service.NewAgentService(s.cfg, tools.NewSessionProvider(taskService))
	if err != nil {
		s.logger.Error("Chat model unavailable, chat endpoint disabled", "error", err)
	} else {
		chatService = service.NewChatService(conversationService, agentService)
	}

	taskHandler := handler.NewTaskHandler(taskService)
	chatHandler := handler.NewChatHandler(chatService, conversationService)

	s.ginEngine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	validator := auth.NewValidator(s.cfg.AuthSecret, !s.cfg.IsProduction())
	apiGroup := s.ginEngine.Group("/api")
	apiGroup.Use(validator.Middleware())

	taskHandler.RegisterRoutes(apiGroup)
	chatHandler.RegisterRoutes(apiGroup)
}

// Start binds the listen address and serves until ctx is cancelled, then
// shuts down gracefully. A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = s.cfg.Port
	}
	s.logger.Info("Server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// OpenDatabase opens and migrates the configured database.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	return db.Open(cfg.DatabasePath)
}
