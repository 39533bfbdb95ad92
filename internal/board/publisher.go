package board

import (
	"kanban/internal/models"
)

// State is an immutable copy of the board handed to observers.
type State struct {
	Tasks    []models.Task           `json:"tasks"`
	Events   []models.Event          `json:"events"`
	Board    []models.TaskWithEvents `json:"board"`
	Selected *models.TaskWithEvents  `json:"selected"`
}

// Listener receives every published State. Listeners run synchronously inside
// the mutating call and must not call back into the Store.
type Listener func(State)

// Subscribe registers fn and immediately delivers the current state to it.
// The returned func removes the registration.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextListenerID++
	id := s.nextListenerID
	s.listeners[id] = fn
	fn(s.buildState())

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// ListenerCount returns the number of active subscriptions.
func (s *Store) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// publish pushes the current state to all listeners. Callers hold s.mu.
func (s *Store) publish() {
	if len(s.listeners) == 0 {
		return
	}
	state := s.buildState()
	for _, fn := range s.listeners {
		fn(state)
	}
}

// buildState copies the in-memory lists into a fresh State. Callers hold s.mu.
func (s *Store) buildState() State {
	state := State{
		Tasks:  make([]models.Task, len(s.tasks)),
		Events: make([]models.Event, 0, len(s.events)),
		Board:  make([]models.TaskWithEvents, 0, len(s.tasks)),
	}
	copy(state.Tasks, s.tasks)
	owners := make(map[int64]struct{}, len(s.tasks))
	for _, t := range s.tasks {
		owners[t.ID] = struct{}{}
	}
	for _, e := range s.events {
		// Orphaned events are kept in storage but never shown.
		if _, ok := owners[e.TaskID]; ok {
			state.Events = append(state.Events, cloneEvent(e))
		}
	}
	for _, t := range s.tasks {
		twe := models.NewTaskWithEvents(t, eventsFor(s.events, t.ID))
		state.Board = append(state.Board, twe)
		if s.selectedID != nil && *s.selectedID == t.ID {
			selected := models.NewTaskWithEvents(t, eventsFor(s.events, t.ID))
			state.Selected = &selected
		}
	}
	return state
}
