package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleExport downloads the whole board as a backup envelope.
func (s *Server) handleExport(c *gin.Context) {
	blob, err := s.store.ExportSnapshot()
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	name := fmt.Sprintf("kanban-%s.json", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/json; charset=utf-8", blob)
}

// handleImport replaces the board with the posted envelope.
func (s *Server) handleImport(c *gin.Context) {
	blob, err := c.GetRawData()
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.store.ImportSnapshot(c.Request.Context(), blob); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	state := s.store.Snapshot()
	respondSuccess(c, http.StatusOK, gin.H{"status": "imported", "tasks": len(state.Tasks), "events": len(state.Events)})
}
