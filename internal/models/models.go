package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TaskStatus is derived from the statuses of a task's events.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
)

// EventStatus is the workflow state of a single event.
type EventStatus string

const (
	EventPending    EventStatus = "PENDING"
	EventInProgress EventStatus = "IN_PROGRESS"
	EventCompleted  EventStatus = "COMPLETED"
	EventCancelled  EventStatus = "CANCELLED"
)

// Priority ranks events inside a task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ValidTaskStatuses enumerates the statuses a task can be derived into.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	TaskPending:    {},
	TaskInProgress: {},
	TaskCompleted:  {},
}

// ValidEventStatuses enumerates the statuses supported by the board columns.
var ValidEventStatuses = map[EventStatus]struct{}{
	EventPending:    {},
	EventInProgress: {},
	EventCompleted:  {},
	EventCancelled:  {},
}

// priorityColors holds the display colour of each priority.
var priorityColors = map[Priority]string{
	PriorityLow:    "#4CAF50",
	PriorityMedium: "#FF9800",
	PriorityHigh:   "#F44336",
	PriorityUrgent: "#9C27B0",
}

// Color returns the display colour for the priority, or an empty string when unknown.
func (p Priority) Color() string {
	return priorityColors[p]
}

// ParseTaskStatus converts an enum name into a TaskStatus.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if _, ok := ValidTaskStatuses[s]; !ok {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// ParseEventStatus converts an enum name into an EventStatus.
func ParseEventStatus(raw string) (EventStatus, error) {
	s := EventStatus(raw)
	if _, ok := ValidEventStatuses[s]; !ok {
		return "", fmt.Errorf("unknown event status %q", raw)
	}
	return s, nil
}

// ParsePriority converts an enum name into a Priority.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if _, ok := priorityColors[p]; !ok {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return p, nil
}

// Task is a top-level card on the board. Status and TimeSpentHours are derived
// from the task's events and are overwritten on every recompute.
type Task struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	TimeSpentHours float64    `json:"time_spent_hours"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	IsActive       bool       `json:"is_active"`
}

// Event is an ordered sub-item of a task.
type Event struct {
	ID                int64       `json:"id"`
	TaskID            int64       `json:"task_id"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Priority          Priority    `json:"priority"`
	Status            EventStatus `json:"status"`
	EstimatedDuration int         `json:"estimated_duration"` // minutes
	ActualDuration    int         `json:"actual_duration"`    // minutes, legacy
	TimeSpentHours    float64     `json:"time_spent_hours"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	DueDate           *time.Time  `json:"due_date,omitempty"`
	Position          int         `json:"position"`
}

// TaskWithEvents is a read-only projection of a task and its ordered events.
type TaskWithEvents struct {
	Task                   Task    `json:"task"`
	Events                 []Event `json:"events"`
	TotalEstimatedDuration int     `json:"total_estimated_duration"`
	TotalActualDuration    int     `json:"total_actual_duration"`
	CompletedEventsCount   int     `json:"completed_events_count"`
	TotalEventsCount       int     `json:"total_events_count"`
	Progress               float64 `json:"progress"`
	HasInProgressEvents    bool    `json:"has_in_progress_events"`
	IsCompleted            bool    `json:"is_completed"`
}

// NewTaskWithEvents builds the projection and its aggregates. Events are expected
// to be ordered by position already.
func NewTaskWithEvents(task Task, events []Event) TaskWithEvents {
	if events == nil {
		events = []Event{}
	}
	twe := TaskWithEvents{
		Task:             task,
		Events:           events,
		TotalEventsCount: len(events),
	}
	for _, e := range events {
		twe.TotalEstimatedDuration += e.EstimatedDuration
		twe.TotalActualDuration += e.ActualDuration
		switch e.Status {
		case EventCompleted:
			twe.CompletedEventsCount++
		case EventInProgress:
			twe.HasInProgressEvents = true
		}
	}
	if twe.TotalEventsCount > 0 {
		twe.Progress = float64(twe.CompletedEventsCount) / float64(twe.TotalEventsCount)
	}
	twe.IsCompleted = twe.TotalEventsCount > 0 && twe.CompletedEventsCount == twe.TotalEventsCount
	return twe
}

// ParseHours reads a time entry typed by the user. Anything that is not a
// non-negative number leaves the previous value in place.
func ParseHours(text string, previous float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return previous
	}
	return v
}
