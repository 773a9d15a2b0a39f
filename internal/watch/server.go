package watch

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Server exposes the watcher state over HTTP for external dashboards.
type Server struct {
	watcher *Watcher
	router  *gin.Engine
}

// NewServer builds the status server around a watcher.
func NewServer(w *Watcher) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{watcher: w, router: router}
	router.GET("/state", s.handleState)
	router.GET("/healthz", s.handleHealthz)
	return s
}

// Run starts the HTTP listener.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.watcher.GetState())
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": s.watcher.Running()})
}
