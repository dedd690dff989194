// Package web serves the admin HTTP surface: page label correction, ingest
// uploads, grounded questions, citation and verification, plus the MCP
// streamable HTTP endpoint.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/operations"
)

// Server is the admin HTTP server
type Server struct {
	lib    *operations.Library
	log    logger.Logger
	router *gin.Engine
}

// NewServer builds the router. mcpHandler is mounted at /mcp when not nil.
func NewServer(lib *operations.Library, mcpHandler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{lib: lib, log: log.With("web")}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogger(s.log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	router.GET("/pages", s.handleGetPages)
	router.POST("/pages", s.handlePostPages)
	router.POST("/ingest", s.handleIngest)
	router.POST("/ask", s.handleAsk)
	router.POST("/cite", s.handleCite)
	router.GET("/verify", s.handleVerify)
	router.GET("/items", s.handleListItems)
	router.DELETE("/items/:id", s.handleDeleteItem)
	router.GET("/search", s.handleSearch)

	zotero := router.Group("/zotero")
	zotero.GET("/search", s.handleZoteroSearch)
	zotero.GET("/collections", s.handleZoteroCollections)

	if mcpHandler != nil {
		h := gin.WrapH(mcpHandler)
		router.GET("/mcp", h)
		router.POST("/mcp", h)
		router.DELETE("/mcp", h)
	}

	s.router = router
	return s
}

// Handler returns the router as an http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Admin server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down admin server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
