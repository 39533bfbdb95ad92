package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kanban/internal/models"
)

type eventRequest struct {
	TaskID            *int64   `json:"task_id"`
	Title             *string  `json:"title"`
	Description       *string  `json:"description"`
	Priority          *string  `json:"priority"`
	Status            *string  `json:"status"`
	EstimatedDuration *int     `json:"estimated_duration"`
	ActualDuration    *int     `json:"actual_duration"`
	TimeSpentHours    *float64 `json:"time_spent_hours"`
	// TimeSpent is the raw text of a time entry; unparsable input keeps the previous value.
	TimeSpent *string `json:"time_spent"`
	DueDate   *string `json:"due_date"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type positionRequest struct {
	Position *int `json:"position"`
}

var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDueDate accepts RFC 3339 or local ISO-8601 date-times. Empty clears the date.
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid due_date %q", raw)
}

// handleListEvents returns a task's events in display order.
func (s *Server) handleListEvents(c *gin.Context) {
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, found := s.store.Task(taskID); !found {
		respondNotFound(c, "task")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"events": s.store.EventsForTask(taskID)})
}

// handleCreateEvent appends an event to a task.
func (s *Server) handleCreateEvent(c *gin.Context) {
	taskID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("title is required"))
		return
	}
	if _, found := s.store.Task(taskID); !found {
		respondNotFound(c, "task")
		return
	}

	priority := models.PriorityMedium
	if req.Priority != nil {
		p, err := models.ParsePriority(*req.Priority)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		priority = p
	}
	estimated := 0
	if req.EstimatedDuration != nil {
		if *req.EstimatedDuration < 0 {
			s.respondError(c, http.StatusBadRequest, fmt.Errorf("estimated_duration must not be negative"))
			return
		}
		estimated = *req.EstimatedDuration
	}
	due, err := parseDueDate(getString(req.DueDate))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	event := s.store.AddEvent(c.Request.Context(), taskID,
		strings.TrimSpace(*req.Title), strings.TrimSpace(getString(req.Description)),
		priority, estimated, due)
	respondSuccess(c, http.StatusCreated, gin.H{"event": event})
}

// handleUpdateEvent edits an event. Only the fields present in the body change.
func (s *Server) handleUpdateEvent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	event, found := s.store.Event(id)
	if !found {
		respondNotFound(c, "event")
		return
	}
	if err := applyEventRequest(&event, req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.TaskID != nil {
		if _, found := s.store.Task(*req.TaskID); !found {
			respondNotFound(c, "task")
			return
		}
		event.TaskID = *req.TaskID
	}

	updated, found := s.store.UpdateEvent(c.Request.Context(), event)
	if !found {
		respondNotFound(c, "event")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"event": updated})
}

func applyEventRequest(event *models.Event, req eventRequest) error {
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		event.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		event.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		p, err := models.ParsePriority(*req.Priority)
		if err != nil {
			return err
		}
		event.Priority = p
	}
	if req.Status != nil {
		st, err := models.ParseEventStatus(*req.Status)
		if err != nil {
			return err
		}
		event.Status = st
	}
	if req.EstimatedDuration != nil {
		if *req.EstimatedDuration < 0 {
			return fmt.Errorf("estimated_duration must not be negative")
		}
		event.EstimatedDuration = *req.EstimatedDuration
	}
	if req.ActualDuration != nil {
		if *req.ActualDuration < 0 {
			return fmt.Errorf("actual_duration must not be negative")
		}
		event.ActualDuration = *req.ActualDuration
	}
	if req.TimeSpentHours != nil {
		if *req.TimeSpentHours < 0 {
			return fmt.Errorf("time_spent_hours must not be negative")
		}
		event.TimeSpentHours = *req.TimeSpentHours
	} else if req.TimeSpent != nil {
		event.TimeSpentHours = models.ParseHours(*req.TimeSpent, event.TimeSpentHours)
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return err
		}
		event.DueDate = due
	}
	return nil
}

// handleUpdateEventStatus moves an event to another status column.
func (s *Server) handleUpdateEventStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	status, err := models.ParseEventStatus(req.Status)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	event, found := s.store.UpdateEventStatus(c.Request.Context(), id, status)
	if !found {
		respondNotFound(c, "event")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"event": event})
}

// handleMoveEvent reorders an event among its task's events.
func (s *Server) handleMoveEvent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Position == nil || *req.Position < 0 {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("position must be a non-negative integer"))
		return
	}

	events, found := s.store.MoveEventOrdered(c.Request.Context(), id, *req.Position)
	if !found {
		respondNotFound(c, "event")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"events": events})
}

// handleDeleteEvent removes an event.
func (s *Server) handleDeleteEvent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !s.store.DeleteEvent(c.Request.Context(), id) {
		respondNotFound(c, "event")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
