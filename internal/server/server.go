package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kanban/internal/board"
)

// Backups is the subset of the backup scheduler exposed over HTTP.
type Backups interface {
	RunOnce(ctx context.Context) (string, error)
	List() ([]string, error)
}

// Options configures optional parts of the server.
type Options struct {
	StaticDir      string
	AllowedOrigins []string
	Backups        Backups // nil disables the backup endpoints
}

// Server provides HTTP handlers for the kanban board.
type Server struct {
	engine    *gin.Engine
	store     *board.Store
	backups   Backups
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *board.Store, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	if len(opts.AllowedOrigins) > 0 {
		router.Use(corsFor(opts.AllowedOrigins))
	}

	srv := &Server{
		engine:    router,
		store:     store,
		backups:   opts.Backups,
		logger:    logger,
		staticDir: opts.StaticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET(":id", s.handleGetTask)
			tasks.PUT(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
			tasks.GET(":id/events", s.handleListEvents)
			tasks.POST(":id/events", s.handleCreateEvent)
		}

		events := api.Group("/events")
		{
			events.PUT(":id", s.handleUpdateEvent)
			events.PUT(":id/status", s.handleUpdateEventStatus)
			events.PUT(":id/position", s.handleMoveEvent)
			events.DELETE(":id", s.handleDeleteEvent)
		}

		api.GET("/selection", s.handleGetSelection)
		api.PUT("/selection", s.handleSelectTask)
		api.DELETE("/selection", s.handleClearSelection)

		api.GET("/export", s.handleExport)
		api.POST("/import", s.handleImport)
		api.GET("/stream", s.handleStream)

		if s.backups != nil {
			api.GET("/backups", s.handleListBackups)
			api.POST("/backups", s.handleRunBackup)
		}
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if err != nil {
		s.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("request_id", c.GetString("requestID")),
			slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondNotFound answers 404 for an unknown entity.
func respondNotFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
