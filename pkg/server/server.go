// Package server exposes the matching engine over a small REST API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/condlab/chainmatch/internal/manager"
	"github.com/condlab/chainmatch/pkg/common/errors"
)

// Server holds the state for the REST API server.
type Server struct {
	manager *manager.SessionManager
	router  *gin.Engine
}

// NewServer creates a new Server instance.
func NewServer(mgr *manager.SessionManager) *Server {
	r := gin.Default()
	s := &Server{
		manager: mgr,
		router:  r,
	}
	s.setupRoutes()
	return s
}

// Run starts the server on the specified address.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/v1/sessions", s.handleSessions)
	s.router.GET("/v1/functions", s.handleFunctions)
	s.router.POST("/v1/match", s.handleMatch)
	s.router.POST("/v1/compress", s.handleCompress)
}

// Health check
func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}

// session resolves the ?session= query parameter to a built session.
func (s *Server) session(c *gin.Context) (*manager.Session, bool) {
	id := c.Query("session")
	if id == "" {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing session ID", nil))
		return nil, false
	}
	sess, err := s.manager.Get(id)
	if err != nil {
		handleError(c, errors.NewAppError(http.StatusNotFound, "Session not found", err))
		return nil, false
	}
	return sess, true
}

func handleError(c *gin.Context, err error) {
	appErr := errors.MapError(err)
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
