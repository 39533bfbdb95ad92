package board

import (
	"kanban/internal/models"
)

type sampleEvent struct {
	title, description string
	priority           models.Priority
	status             models.EventStatus
	estimated, actual  int
	hours              float64
}

var sampleBoard = []struct {
	title, description string
	events             []sampleEvent
}{
	{
		title:       "Build user login",
		description: "Implement login, registration and password reset",
		events: []sampleEvent{
			{"Design database schema", "Design the user table and its fields", models.PriorityHigh, models.EventCompleted, 120, 90, 1.5},
			{"Implement registration API", "Create the user registration endpoint", models.PriorityMedium, models.EventInProgress, 180, 60, 1.0},
			{"Registration page", "Design and build the registration page", models.PriorityMedium, models.EventPending, 240, 0, 0},
		},
	},
	{
		title:       "Design main screen",
		description: "Design the main screen and navigation structure",
		events: []sampleEvent{
			{"Wireframes", "Draw wireframes for the main pages", models.PriorityLow, models.EventPending, 300, 0, 0},
		},
	},
}

// seedSampleData fills an empty board with example tasks. Callers hold s.mu
// and commit afterwards.
func (s *Store) seedSampleData() {
	now := s.clock()
	for _, st := range sampleBoard {
		task := models.Task{
			ID:          s.nextTaskID,
			Title:       st.title,
			Description: st.description,
			Status:      models.TaskPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			IsActive:    true,
		}
		s.nextTaskID++
		s.tasks = append(s.tasks, task)

		for pos, se := range st.events {
			s.events = append(s.events, models.Event{
				ID:                s.nextEventID,
				TaskID:            task.ID,
				Title:             se.title,
				Description:       se.description,
				Priority:          se.priority,
				Status:            se.status,
				EstimatedDuration: se.estimated,
				ActualDuration:    se.actual,
				TimeSpentHours:    se.hours,
				CreatedAt:         now,
				UpdatedAt:         now,
				Position:          pos,
			})
			s.nextEventID++
		}
	}
	s.logger.Info("seeded sample board", "tasks", len(sampleBoard))
}
