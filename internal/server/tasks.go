package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// taskRequest carries the caller-editable task fields. Status and time spent
// are derived from events and cannot be set here.
type taskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// handleListTasks returns every task joined with its events.
func (s *Server) handleListTasks(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"tasks": s.store.Snapshot().Board})
}

// handleCreateTask adds a new pending task.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}

	task := s.store.AddTask(c.Request.Context(), strings.TrimSpace(*req.Title), strings.TrimSpace(getString(req.Description)))
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleGetTask returns a task with its ordered events and progress.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	twe, found := s.store.Task(id)
	if !found {
		respondNotFound(c, "task")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": twe})
}

// handleUpdateTask edits the title, description or active flag of a task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	current, found := s.store.Task(id)
	if !found {
		respondNotFound(c, "task")
		return
	}
	task := current.Task
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsActive != nil {
		task.IsActive = *req.IsActive
	}

	updated, found := s.store.UpdateTask(c.Request.Context(), task)
	if !found {
		respondNotFound(c, "task")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": updated})
}

// handleDeleteTask removes a task and its events.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !s.store.DeleteTask(c.Request.Context(), id) {
		respondNotFound(c, "task")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
