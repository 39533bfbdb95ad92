package board

import (
	"sort"

	"kanban/internal/models"
)

// deriveStatus computes a task's status from its events.
func deriveStatus(events []models.Event) models.TaskStatus {
	if len(events) == 0 {
		return models.TaskPending
	}
	completed := 0
	for _, e := range events {
		switch e.Status {
		case models.EventInProgress:
			return models.TaskInProgress
		case models.EventCompleted:
			completed++
		}
	}
	switch {
	case completed == len(events):
		return models.TaskCompleted
	case completed > 0:
		return models.TaskInProgress
	default:
		return models.TaskPending
	}
}

func sumHours(events []models.Event) float64 {
	var total float64
	for _, e := range events {
		total += e.TimeSpentHours
	}
	return total
}

// recompute overwrites every task's derived fields from the current events.
func recompute(tasks []models.Task, events []models.Event) {
	byTask := make(map[int64][]models.Event, len(tasks))
	for _, e := range events {
		byTask[e.TaskID] = append(byTask[e.TaskID], e)
	}
	for i := range tasks {
		owned := byTask[tasks[i].ID]
		tasks[i].Status = deriveStatus(owned)
		tasks[i].TimeSpentHours = sumHours(owned)
	}
}

// eventsFor returns copies of the task's events ordered by position.
func eventsFor(events []models.Event, taskID int64) []models.Event {
	out := []models.Event{}
	for _, e := range events {
		if e.TaskID == taskID {
			out = append(out, cloneEvent(e))
		}
	}
	sortByPosition(out)
	return out
}

func sortByPosition(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Position != events[j].Position {
			return events[i].Position < events[j].Position
		}
		return events[i].ID < events[j].ID
	})
}

func cloneEvent(e models.Event) models.Event {
	if e.DueDate != nil {
		due := *e.DueDate
		e.DueDate = &due
	}
	return e
}
