package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleListBackups lists stored backups, newest first.
func (s *Server) handleListBackups(c *gin.Context) {
	names, err := s.backups.List()
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"backups": names})
}

// handleRunBackup writes a backup immediately.
func (s *Server) handleRunBackup(c *gin.Context) {
	path, err := s.backups.RunOnce(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"path": path})
}
