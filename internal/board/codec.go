package board

import (
	"encoding/json"
	"fmt"
	"time"

	"kanban/internal/models"
)

// Timestamps are ISO-8601 local date-times without a zone designator.
const dateLayoutOut = "2006-01-02T15:04:05.999999999"

// dateLayoutsIn are tried in order. Seconds may be omitted; fractional seconds
// are accepted by the first layout.
var dateLayoutsIn = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// taskRecord is the persisted shape of a task. Pointer fields distinguish
// absent (or null) from zero so defaults can be applied on decode.
type taskRecord struct {
	ID             *int64   `json:"id"`
	Title          *string  `json:"title"`
	Description    *string  `json:"description"`
	Status         *string  `json:"status"`
	TimeSpentHours *float64 `json:"timeSpentHours"`
	CreatedAt      *string  `json:"createdAt"`
	UpdatedAt      *string  `json:"updatedAt"`
	IsActive       *bool    `json:"isActive"`
}

type eventRecord struct {
	ID                *int64   `json:"id"`
	TaskID            *int64   `json:"taskId"`
	Title             *string  `json:"title"`
	Description       *string  `json:"description"`
	Priority          *string  `json:"priority"`
	Status            *string  `json:"status"`
	EstimatedDuration *int     `json:"estimatedDuration"`
	ActualDuration    *int     `json:"actualDuration"`
	TimeSpentHours    *float64 `json:"timeSpentHours"`
	CreatedAt         *string  `json:"createdAt"`
	UpdatedAt         *string  `json:"updatedAt"`
	DueDate           *string  `json:"dueDate,omitempty"`
	Position          *int     `json:"position"`
}

func formatDate(t time.Time) string {
	return t.In(time.Local).Format(dateLayoutOut)
}

func parseDate(raw string) (time.Time, error) {
	var firstErr error
	for _, layout := range dateLayoutsIn {
		t, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: %w", raw, firstErr)
}

func requireDate(field string, raw *string) (time.Time, error) {
	if raw == nil {
		return time.Time{}, fmt.Errorf("missing %s", field)
	}
	return parseDate(*raw)
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

func ptr[T any](v T) *T {
	return &v
}

func encodeTask(t models.Task) taskRecord {
	return taskRecord{
		ID:             ptr(t.ID),
		Title:          ptr(t.Title),
		Description:    ptr(t.Description),
		Status:         ptr(string(t.Status)),
		TimeSpentHours: ptr(t.TimeSpentHours),
		CreatedAt:      ptr(formatDate(t.CreatedAt)),
		UpdatedAt:      ptr(formatDate(t.UpdatedAt)),
		IsActive:       ptr(t.IsActive),
	}
}

func decodeTask(r taskRecord) (models.Task, error) {
	if r.ID == nil {
		return models.Task{}, fmt.Errorf("task: missing id")
	}
	if r.Title == nil {
		return models.Task{}, fmt.Errorf("task %d: missing title", *r.ID)
	}
	status, err := models.ParseTaskStatus(stringOr(r.Status, string(models.TaskPending)))
	if err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", *r.ID, err)
	}
	createdAt, err := requireDate("createdAt", r.CreatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", *r.ID, err)
	}
	updatedAt, err := requireDate("updatedAt", r.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("task %d: %w", *r.ID, err)
	}

	t := models.Task{
		ID:          *r.ID,
		Title:       *r.Title,
		Description: stringOr(r.Description, ""),
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		IsActive:    true,
	}
	if r.TimeSpentHours != nil {
		t.TimeSpentHours = *r.TimeSpentHours
	}
	if r.IsActive != nil {
		t.IsActive = *r.IsActive
	}
	return t, nil
}

func encodeEvent(e models.Event) eventRecord {
	r := eventRecord{
		ID:                ptr(e.ID),
		TaskID:            ptr(e.TaskID),
		Title:             ptr(e.Title),
		Description:       ptr(e.Description),
		Priority:          ptr(string(e.Priority)),
		Status:            ptr(string(e.Status)),
		EstimatedDuration: ptr(e.EstimatedDuration),
		ActualDuration:    ptr(e.ActualDuration),
		TimeSpentHours:    ptr(e.TimeSpentHours),
		CreatedAt:         ptr(formatDate(e.CreatedAt)),
		UpdatedAt:         ptr(formatDate(e.UpdatedAt)),
		Position:          ptr(e.Position),
	}
	if e.DueDate != nil {
		r.DueDate = ptr(formatDate(*e.DueDate))
	}
	return r
}

func decodeEvent(r eventRecord) (models.Event, error) {
	if r.ID == nil {
		return models.Event{}, fmt.Errorf("event: missing id")
	}
	id := *r.ID
	if r.TaskID == nil {
		return models.Event{}, fmt.Errorf("event %d: missing taskId", id)
	}
	if r.Title == nil {
		return models.Event{}, fmt.Errorf("event %d: missing title", id)
	}
	priority, err := models.ParsePriority(stringOr(r.Priority, string(models.PriorityMedium)))
	if err != nil {
		return models.Event{}, fmt.Errorf("event %d: %w", id, err)
	}
	status, err := models.ParseEventStatus(stringOr(r.Status, string(models.EventPending)))
	if err != nil {
		return models.Event{}, fmt.Errorf("event %d: %w", id, err)
	}
	createdAt, err := requireDate("createdAt", r.CreatedAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("event %d: %w", id, err)
	}
	updatedAt, err := requireDate("updatedAt", r.UpdatedAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("event %d: %w", id, err)
	}

	e := models.Event{
		ID:          id,
		TaskID:      *r.TaskID,
		Title:       *r.Title,
		Description: stringOr(r.Description, ""),
		Priority:    priority,
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
	if r.EstimatedDuration != nil {
		e.EstimatedDuration = *r.EstimatedDuration
	}
	if r.ActualDuration != nil {
		e.ActualDuration = *r.ActualDuration
	}
	if r.TimeSpentHours != nil {
		e.TimeSpentHours = *r.TimeSpentHours
	}
	if r.Position != nil {
		e.Position = *r.Position
	}
	if r.DueDate != nil {
		due, err := parseDate(*r.DueDate)
		if err != nil {
			return models.Event{}, fmt.Errorf("event %d: dueDate: %w", id, err)
		}
		e.DueDate = &due
	}
	return e, nil
}

func decodeTaskRecords(records []taskRecord) ([]models.Task, error) {
	tasks := make([]models.Task, 0, len(records))
	for _, r := range records {
		t, err := decodeTask(r)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func decodeEventRecords(records []eventRecord) ([]models.Event, error) {
	events := make([]models.Event, 0, len(records))
	for _, r := range records {
		e, err := decodeEvent(r)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// decodeTasks parses the persisted "tasks" collection.
func decodeTasks(raw string) ([]models.Task, error) {
	var records []taskRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return decodeTaskRecords(records)
}

// decodeEvents parses the persisted "events" collection.
func decodeEvents(raw string) ([]models.Event, error) {
	var records []eventRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return decodeEventRecords(records)
}

func taskRecords(tasks []models.Task) []taskRecord {
	out := make([]taskRecord, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, encodeTask(t))
	}
	return out
}

func eventRecords(events []models.Event) []eventRecord {
	out := make([]eventRecord, 0, len(events))
	for _, e := range events {
		out = append(out, encodeEvent(e))
	}
	return out
}

func encodeTasks(tasks []models.Task) (string, error) {
	b, err := json.Marshal(taskRecords(tasks))
	if err != nil {
		return "", fmt.Errorf("encode tasks: %w", err)
	}
	return string(b), nil
}

func encodeEvents(events []models.Event) (string, error) {
	b, err := json.Marshal(eventRecords(events))
	if err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}
	return string(b), nil
}
