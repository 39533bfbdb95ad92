package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type selectRequest struct {
	TaskID *int64 `json:"task_id"`
}

// handleGetSelection returns the selected task, or null when none is selected.
func (s *Server) handleGetSelection(c *gin.Context) {
	twe, ok := s.store.Selected()
	if !ok {
		respondSuccess(c, http.StatusOK, gin.H{"selected": nil})
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"selected": twe})
}

// handleSelectTask selects a task. An unknown task keeps the current selection.
func (s *Server) handleSelectTask(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.TaskID == nil {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("task_id is required"))
		return
	}
	if !s.store.SelectTask(*req.TaskID) {
		respondNotFound(c, "task")
		return
	}
	s.handleGetSelection(c)
}

// handleClearSelection drops the current selection.
func (s *Server) handleClearSelection(c *gin.Context) {
	s.store.ClearSelection()
	respondSuccess(c, http.StatusOK, gin.H{"selected": nil})
}
