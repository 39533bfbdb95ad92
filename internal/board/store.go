// Package board owns the task and event lists, their persistence and the
// derived task fields.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"kanban/internal/models"
	"kanban/internal/storage"
)

// Preference keys.
const (
	KeyTasks       = "tasks"
	KeyEvents      = "events"
	KeyNextTaskID  = "next_task_id"
	KeyNextEventID = "next_event_id"
	KeyDataVersion = "data_version"
)

// CurrentDataVersion is stamped on persisted data and exported envelopes.
const CurrentDataVersion = 1

// migrations upgrade stored data from the keyed version to the next one.
var migrations = map[int]func(context.Context, storage.Prefs) error{
	// Unversioned data already has the version 1 layout.
	0: func(context.Context, storage.Prefs) error { return nil },
}

// Options tunes Open.
type Options struct {
	Logger *slog.Logger
	// Clock overrides time.Now for timestamps.
	Clock func() time.Time
	// SeedSampleData fills an empty board with example tasks.
	SeedSampleData bool
}

// Store is the single owner and writer of board data.
type Store struct {
	mu     sync.Mutex
	prefs  storage.Prefs
	logger *slog.Logger
	clock  func() time.Time

	tasks       []models.Task
	events      []models.Event
	nextTaskID  int64
	nextEventID int64
	selectedID  *int64

	listeners      map[int]Listener
	nextListenerID int
}

// Open loads the board from prefs, running data migrations first. Corrupt
// collections are logged and start out empty.
func Open(ctx context.Context, prefs storage.Prefs, opts Options) (*Store, error) {
	if prefs == nil {
		return nil, fmt.Errorf("nil prefs store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Store{
		prefs:     prefs,
		logger:    logger,
		clock:     clock,
		tasks:     []models.Task{},
		events:    []models.Event{},
		listeners: make(map[int]Listener),
	}

	var err error
	if s.nextTaskID, err = s.loadCounter(ctx, KeyNextTaskID); err != nil {
		return nil, err
	}
	if s.nextEventID, err = s.loadCounter(ctx, KeyNextEventID); err != nil {
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	if err := s.loadCollections(ctx); err != nil {
		return nil, err
	}
	s.repairCounters()

	if len(s.tasks) == 0 && opts.SeedSampleData {
		s.seedSampleData()
		s.commit(ctx)
	} else {
		recompute(s.tasks, s.events)
	}

	logger.Info("board loaded", "tasks", len(s.tasks), "events", len(s.events))
	return s, nil
}

func (s *Store) loadCounter(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.prefs.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return 1, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		s.logger.Warn("invalid id counter, resetting", "key", key, "value", raw)
		return 1, nil
	}
	return v, nil
}

// migrate upgrades stored data to CurrentDataVersion.
func (s *Store) migrate(ctx context.Context) error {
	raw, ok, err := s.prefs.Get(ctx, KeyDataVersion)
	if err != nil {
		return fmt.Errorf("read %s: %w", KeyDataVersion, err)
	}
	version := 0
	if ok {
		if version, err = strconv.Atoi(raw); err != nil {
			s.logger.Warn("invalid data version, treating as unversioned", "value", raw)
			version = 0
		}
	}
	if version > CurrentDataVersion {
		s.logger.Warn("stored data is newer than this build", "version", version, "current", CurrentDataVersion)
		return nil
	}
	if version == CurrentDataVersion {
		return nil
	}

	for v := version; v < CurrentDataVersion; v++ {
		if step, ok := migrations[v]; ok {
			if err := step(ctx, s.prefs); err != nil {
				return fmt.Errorf("migrate from version %d: %w", v, err)
			}
		}
	}
	if err := s.prefs.Apply(ctx, map[string]string{KeyDataVersion: strconv.Itoa(CurrentDataVersion)}); err != nil {
		return fmt.Errorf("stamp data version: %w", err)
	}
	s.logger.Info("data migrated", "from", version, "to", CurrentDataVersion)
	return nil
}

func (s *Store) loadCollections(ctx context.Context) error {
	rawTasks, ok, err := s.prefs.Get(ctx, KeyTasks)
	if err != nil {
		return fmt.Errorf("read %s: %w", KeyTasks, err)
	}
	if ok {
		tasks, err := decodeTasks(rawTasks)
		if err != nil {
			s.logger.Error("discarding corrupt tasks", slog.String("error", err.Error()))
		} else {
			s.tasks = tasks
		}
	}

	rawEvents, ok, err := s.prefs.Get(ctx, KeyEvents)
	if err != nil {
		return fmt.Errorf("read %s: %w", KeyEvents, err)
	}
	if ok {
		events, err := decodeEvents(rawEvents)
		if err != nil {
			s.logger.Error("discarding corrupt events", slog.String("error", err.Error()))
		} else {
			s.events = events
		}
	}
	return nil
}

// repairCounters keeps the id counters ahead of every id in use.
func (s *Store) repairCounters() {
	for _, t := range s.tasks {
		if t.ID >= s.nextTaskID {
			s.nextTaskID = t.ID + 1
		}
	}
	for _, e := range s.events {
		if e.ID >= s.nextEventID {
			s.nextEventID = e.ID + 1
		}
	}
}

// commit recomputes derived fields, persists and publishes. Callers hold s.mu.
func (s *Store) commit(ctx context.Context) {
	recompute(s.tasks, s.events)
	if s.selectedID != nil && s.taskIndex(*s.selectedID) < 0 {
		s.selectedID = nil
	}
	s.persist(ctx)
	s.publish()
}

// persist writes every collection and counter in one batch. Failures are
// logged and the in-memory state stays authoritative.
func (s *Store) persist(ctx context.Context) {
	tasks, err := encodeTasks(s.tasks)
	if err != nil {
		s.logger.Error("persist failed", slog.String("error", err.Error()))
		return
	}
	events, err := encodeEvents(s.events)
	if err != nil {
		s.logger.Error("persist failed", slog.String("error", err.Error()))
		return
	}
	err = s.prefs.Apply(ctx, map[string]string{
		KeyTasks:       tasks,
		KeyEvents:      events,
		KeyNextTaskID:  strconv.FormatInt(s.nextTaskID, 10),
		KeyNextEventID: strconv.FormatInt(s.nextEventID, 10),
		KeyDataVersion: strconv.Itoa(CurrentDataVersion),
	})
	if err != nil {
		s.logger.Error("persist failed", slog.String("error", err.Error()))
	}
}

func (s *Store) taskIndex(id int64) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) eventIndex(id int64) int {
	for i, e := range s.events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) maxPosition(taskID int64) (int, bool) {
	highest, found := 0, false
	for _, e := range s.events {
		if e.TaskID != taskID {
			continue
		}
		if !found || e.Position > highest {
			highest, found = e.Position, true
		}
	}
	return highest, found
}

func (s *Store) nextPosition(taskID int64) int {
	if highest, ok := s.maxPosition(taskID); ok {
		return highest + 1
	}
	return 0
}

// AddTask appends a new pending task.
func (s *Store) AddTask(ctx context.Context, title, description string) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	t := models.Task{
		ID:          s.nextTaskID,
		Title:       title,
		Description: description,
		Status:      models.TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsActive:    true,
	}
	s.nextTaskID++
	s.tasks = append(s.tasks, t)
	s.commit(ctx)

	s.logger.Debug("task added", "task_id", t.ID)
	return s.tasks[len(s.tasks)-1]
}

// UpdateTask replaces the stored task with the same id. Status and
// TimeSpentHours supplied by the caller are discarded by the recompute; the
// creation time is kept. Reports false when the id is unknown.
func (s *Store) UpdateTask(ctx context.Context, task models.Task) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taskIndex(task.ID)
	if i < 0 {
		return models.Task{}, false
	}
	task.CreatedAt = s.tasks[i].CreatedAt
	task.UpdatedAt = s.clock()
	s.tasks[i] = task
	s.commit(ctx)

	s.logger.Debug("task updated", "task_id", task.ID)
	return s.tasks[i], true
}

// DeleteTask removes the task and every event it owns.
func (s *Store) DeleteTask(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taskIndex(id)
	if i < 0 {
		return false
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)

	kept := s.events[:0]
	removed := 0
	for _, e := range s.events {
		if e.TaskID == id {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	s.commit(ctx)

	s.logger.Debug("task deleted", "task_id", id, "events_removed", removed)
	return true
}

// SelectTask makes the task the current selection. An unknown id leaves the
// previous selection in place and reports false.
func (s *Store) SelectTask(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.taskIndex(id) < 0 {
		return false
	}
	s.selectedID = &id
	s.publish()
	return true
}

// ClearSelection drops the current selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectedID == nil {
		return
	}
	s.selectedID = nil
	s.publish()
}

// Selected returns the selected task with its ordered events.
func (s *Store) Selected() (models.TaskWithEvents, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectedID == nil {
		return models.TaskWithEvents{}, false
	}
	i := s.taskIndex(*s.selectedID)
	if i < 0 {
		return models.TaskWithEvents{}, false
	}
	return models.NewTaskWithEvents(s.tasks[i], eventsFor(s.events, s.tasks[i].ID)), true
}

// AddEvent appends an event after the task's last event.
func (s *Store) AddEvent(ctx context.Context, taskID int64, title, description string, priority models.Priority, estimatedDuration int, dueDate *time.Time) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if priority == "" {
		priority = models.PriorityMedium
	}
	if estimatedDuration < 0 {
		estimatedDuration = 0
	}
	now := s.clock()
	e := models.Event{
		ID:                s.nextEventID,
		TaskID:            taskID,
		Title:             title,
		Description:       description,
		Priority:          priority,
		Status:            models.EventPending,
		EstimatedDuration: estimatedDuration,
		CreatedAt:         now,
		UpdatedAt:         now,
		Position:          s.nextPosition(taskID),
	}
	if dueDate != nil {
		due := *dueDate
		e.DueDate = &due
	}
	s.nextEventID++
	s.events = append(s.events, e)
	s.commit(ctx)

	s.logger.Debug("event added", "event_id", e.ID, "task_id", taskID, "position", e.Position)
	return cloneEvent(e)
}

// UpdateEvent replaces the stored event with the same id. Ordering is owned by
// MoveEvent: the stored position is kept unless the event changes task, in
// which case it is appended to its new task. Negative durations and hours are
// stored as 0.
func (s *Store) UpdateEvent(ctx context.Context, event models.Event) (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.eventIndex(event.ID)
	if i < 0 {
		return models.Event{}, false
	}
	current := s.events[i]
	if event.TaskID != current.TaskID {
		event.Position = s.nextPosition(event.TaskID)
	} else {
		event.Position = current.Position
	}
	event.EstimatedDuration = max(event.EstimatedDuration, 0)
	event.ActualDuration = max(event.ActualDuration, 0)
	if !(event.TimeSpentHours >= 0) {
		event.TimeSpentHours = 0
	}
	event.CreatedAt = current.CreatedAt
	event.UpdatedAt = s.clock()
	event = cloneEvent(event)
	s.events[i] = event
	s.commit(ctx)

	s.logger.Debug("event updated", "event_id", event.ID)
	return cloneEvent(event), true
}

// DeleteEvent removes a single event.
func (s *Store) DeleteEvent(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.eventIndex(id)
	if i < 0 {
		return false
	}
	taskID := s.events[i].TaskID
	s.events = append(s.events[:i], s.events[i+1:]...)
	s.commit(ctx)

	s.logger.Debug("event deleted", "event_id", id, "task_id", taskID)
	return true
}

// UpdateEventStatus sets an event's status. Transition legality is left to
// the caller.
func (s *Store) UpdateEventStatus(ctx context.Context, id int64, status models.EventStatus) (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.eventIndex(id)
	if i < 0 {
		return models.Event{}, false
	}
	s.events[i].Status = status
	s.events[i].UpdatedAt = s.clock()
	s.commit(ctx)

	s.logger.Debug("event status changed", "event_id", id, "status", status)
	return cloneEvent(s.events[i]), true
}

// MoveEvent places the event at index newPosition among its siblings and
// renumbers the task's events 0..n-1. Indexes past the end append; negative
// indexes are treated as 0.
func (s *Store) MoveEvent(ctx context.Context, id int64, newPosition int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.moveEvent(ctx, id, newPosition)
	return ok
}

// MoveEventOrdered moves the event like MoveEvent and returns its task's events
// in their new order, read under the same lock as the move.
func (s *Store) MoveEventOrdered(ctx context.Context, id int64, newPosition int) ([]models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taskID, ok := s.moveEvent(ctx, id, newPosition)
	if !ok {
		return nil, false
	}
	return eventsFor(s.events, taskID), true
}

// moveEvent reorders the event's task and returns the task id. Callers hold s.mu.
func (s *Store) moveEvent(ctx context.Context, id int64, newPosition int) (int64, bool) {
	i := s.eventIndex(id)
	if i < 0 {
		return 0, false
	}
	moved := s.events[i]

	siblings := make([]models.Event, 0)
	for _, e := range s.events {
		if e.TaskID == moved.TaskID && e.ID != id {
			siblings = append(siblings, e)
		}
	}
	sortByPosition(siblings)

	if newPosition < 0 {
		newPosition = 0
	}
	if newPosition > len(siblings) {
		newPosition = len(siblings)
	}
	order := make([]int64, 0, len(siblings)+1)
	for _, e := range siblings[:newPosition] {
		order = append(order, e.ID)
	}
	order = append(order, id)
	for _, e := range siblings[newPosition:] {
		order = append(order, e.ID)
	}

	positions := make(map[int64]int, len(order))
	for pos, eid := range order {
		positions[eid] = pos
	}
	now := s.clock()
	for j := range s.events {
		if pos, ok := positions[s.events[j].ID]; ok {
			s.events[j].Position = pos
			s.events[j].UpdatedAt = now
		}
	}
	s.commit(ctx)

	s.logger.Debug("event moved", "event_id", id, "task_id", moved.TaskID, "position", newPosition)
	return moved.TaskID, true
}

// EventsForTask returns the task's events ordered by position.
func (s *Store) EventsForTask(taskID int64) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return eventsFor(s.events, taskID)
}

// Task returns a task joined with its ordered events.
func (s *Store) Task(id int64) (models.TaskWithEvents, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taskIndex(id)
	if i < 0 {
		return models.TaskWithEvents{}, false
	}
	return models.NewTaskWithEvents(s.tasks[i], eventsFor(s.events, id)), true
}

// Event returns a single event by id.
func (s *Store) Event(id int64) (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.eventIndex(id)
	if i < 0 {
		return models.Event{}, false
	}
	return cloneEvent(s.events[i]), true
}

// Snapshot returns the current state without waiting for a mutation.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildState()
}
