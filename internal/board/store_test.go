package board

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"kanban/internal/models"
	"kanban/internal/storage/memory"
)

func testClock() func() time.Time {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *memory.Store) {
	t.Helper()
	prefs := memory.New(nil)
	s, err := Open(context.Background(), prefs, Options{Logger: testLogger(), Clock: testClock()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, prefs
}

func taskByID(t *testing.T, s *Store, id int64) models.Task {
	t.Helper()
	twe, ok := s.Task(id)
	if !ok {
		t.Fatalf("task %d not found", id)
	}
	return twe.Task
}

func positions(events []models.Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddTaskAssignsIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a := s.AddTask(ctx, "a", "first")
	b := s.AddTask(ctx, "b", "")
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", a.ID, b.ID)
	}
	if a.Status != models.TaskPending || a.TimeSpentHours != 0 || !a.IsActive {
		t.Fatalf("unexpected new task: %+v", a)
	}
	if !a.CreatedAt.Equal(a.UpdatedAt) {
		t.Fatalf("CreatedAt %v != UpdatedAt %v", a.CreatedAt, a.UpdatedAt)
	}
}

func TestDerivedStatusFollowsEvents(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	task := s.AddTask(ctx, "t", "")

	e1 := s.AddEvent(ctx, task.ID, "one", "", models.PriorityHigh, 30, nil)
	e2 := s.AddEvent(ctx, task.ID, "two", "", models.PriorityLow, 60, nil)

	steps := []struct {
		id     int64
		status models.EventStatus
		want   models.TaskStatus
	}{
		{e1.ID, models.EventInProgress, models.TaskInProgress},
		{e1.ID, models.EventCompleted, models.TaskInProgress},
		{e2.ID, models.EventCancelled, models.TaskInProgress},
		{e2.ID, models.EventCompleted, models.TaskCompleted},
		{e1.ID, models.EventPending, models.TaskInProgress},
		{e2.ID, models.EventPending, models.TaskPending},
	}
	for i, step := range steps {
		if _, ok := s.UpdateEventStatus(ctx, step.id, step.status); !ok {
			t.Fatalf("step %d: event %d not found", i, step.id)
		}
		if got := taskByID(t, s, task.ID).Status; got != step.want {
			t.Fatalf("step %d: status = %s, want %s", i, got, step.want)
		}
	}
}

func TestAllCancelledIsPending(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	task := s.AddTask(ctx, "t", "")
	e := s.AddEvent(ctx, task.ID, "one", "", models.PriorityMedium, 0, nil)
	s.UpdateEventStatus(ctx, e.ID, models.EventCancelled)

	if got := taskByID(t, s, task.ID).Status; got != models.TaskPending {
		t.Fatalf("status = %s, want PENDING", got)
	}
}

func TestTimeSpentIsSumOfEvents(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	task := s.AddTask(ctx, "t", "")
	e1 := s.AddEvent(ctx, task.ID, "one", "", models.PriorityMedium, 0, nil)
	e2 := s.AddEvent(ctx, task.ID, "two", "", models.PriorityMedium, 0, nil)

	e1.TimeSpentHours = 1.5
	e2.TimeSpentHours = 2.25
	s.UpdateEvent(ctx, e1)
	s.UpdateEvent(ctx, e2)

	if got := taskByID(t, s, task.ID).TimeSpentHours; got != 3.75 {
		t.Fatalf("TimeSpentHours = %v, want 3.75", got)
	}

	s.DeleteEvent(ctx, e2.ID)
	if got := taskByID(t, s, task.ID).TimeSpentHours; got != 1.5 {
		t.Fatalf("TimeSpentHours after delete = %v, want 1.5", got)
	}
}

func TestUpdateTaskCannotSetDerivedFields(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	task := s.AddTask(ctx, "t", "")

	task.Title = "renamed"
	task.Status = models.TaskCompleted
	task.TimeSpentHours = 42
	task.CreatedAt = time.Time{}
	got, ok := s.UpdateTask(ctx, task)
	if !ok {
		t.Fatal("UpdateTask() ok = false")
	}
	if got.Title != "renamed" {
		t.Fatalf("Title = %q, want renamed", got.Title)
	}
	if got.Status != models.TaskPending || got.TimeSpentHours != 0 {
		t.Fatalf("derived fields = %s/%v, want PENDING/0", got.Status, got.TimeSpentHours)
	}
	if got.CreatedAt.IsZero() || !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestZeroEventTaskResetsToPending(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	task := s.AddTask(ctx, "t", "")
	e := s.AddEvent(ctx, task.ID, "only", "", models.PriorityMedium, 0, nil)
	e.Status = models.EventCompleted
	e.TimeSpentHours = 5
	s.UpdateEvent(ctx, e)

	if got := taskByID(t, s, task.ID); got.Status != models.TaskCompleted || got.TimeSpentHours != 5 {
		t.Fatalf("task = %s/%v, want COMPLETED/5", got.Status, got.TimeSpentHours)
	}

	s.DeleteEvent(ctx, e.ID)
	if got := taskByID(t, s, task.ID); got.Status != models.TaskPending || got.TimeSpentHours != 0 {
		t.Fatalf("task = %s/%v, want PENDING/0", got.Status, got.TimeSpentHours)
	}
}

func TestMissingIDsAreNoOps(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.AddTask(ctx, "t", "")
	before := s.Snapshot()

	if _, ok := s.UpdateTask(ctx, models.Task{ID: 99, Title: "x"}); ok {
		t.Fatal("UpdateTask(99) ok = true")
	}
	if s.DeleteTask(ctx, 99) {
		t.Fatal("DeleteTask(99) = true")
	}
	if _, ok := s.UpdateEvent(ctx, models.Event{ID: 99}); ok {
		t.Fatal("UpdateEvent(99) ok = true")
	}
	if s.DeleteEvent(ctx, 99) {
		t.Fatal("DeleteEvent(99) = true")
	}
	if _, ok := s.UpdateEventStatus(ctx, 99, models.EventCompleted); ok {
		t.Fatal("UpdateEventStatus(99) ok = true")
	}
	if s.MoveEvent(ctx, 99, 0) {
		t.Fatal("MoveEvent(99) = true")
	}

	after := s.Snapshot()
	if len(after.Tasks) != len(before.Tasks) || !after.Tasks[0].UpdatedAt.Equal(before.Tasks[0].UpdatedAt) {
		t.Fatalf("state changed: %+v -> %+v", before.Tasks, after.Tasks)
	}
}

func TestAddEventPositions(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	a := s.AddTask(ctx, "a", "")
	b := s.AddTask(ctx, "b", "")

	e0 := s.AddEvent(ctx, a.ID, "a0", "", models.PriorityMedium, 0, nil)
	f0 := s.AddEvent(ctx, b.ID, "b0", "", "", 0, nil)
	e1 := s.AddEvent(ctx, a.ID, "a1", "", models.PriorityMedium, 0, nil)

	if e0.Position != 0 || e1.Position != 1 || f0.Position != 0 {
		t.Fatalf("positions = %d, %d, %d, want 0, 1, 0", e0.Position, e1.Position, f0.Position)
	}
	if f0.Priority != models.PriorityMedium {
		t.Fatalf("default priority = %s, want MEDIUM", f0.Priority)
	}

	s.DeleteEvent(ctx, e0.ID)
	e2 := s.AddEvent(ctx, a.ID, "a2", "", models.PriorityMedium, 0, nil)
	if e2.Position != 2 {
		t.Fatalf("position after gap = %d, want 2", e2.Position)
	}
}

func TestMoveEventScenario(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	task := s.AddTask(ctx, "t", "")
	a := s.AddEvent(ctx, task.ID, "A", "", models.PriorityMedium, 0, nil)
	b := s.AddEvent(ctx, task.ID, "B", "", models.PriorityMedium, 0, nil)

	if !s.MoveEvent(ctx, b.ID, 0) {
		t.Fatal("MoveEvent() = false")
	}
	events := s.EventsForTask(task.ID)
	if !equalIDs(positions(events), []int64{b.ID, a.ID}) {
		t.Fatalf("order = %v, want [%d %d]", positions(events), b.ID, a.ID)
	}
	if events[0].Position != 0 || events[1].Position != 1 {
		t.Fatalf("positions = %d, %d, want 0, 1", events[0].Position, events[1].Position)
	}
}

func TestMoveEventOrderedReturnsTaskEvents(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	other := s.AddTask(ctx, "other", "")
	task := s.AddTask(ctx, "t", "")
	s.AddEvent(ctx, other.ID, "x", "", models.PriorityMedium, 0, nil)
	a := s.AddEvent(ctx, task.ID, "A", "", models.PriorityMedium, 0, nil)
	b := s.AddEvent(ctx, task.ID, "B", "", models.PriorityMedium, 0, nil)

	events, ok := s.MoveEventOrdered(ctx, b.ID, 0)
	if !ok {
		t.Fatal("MoveEventOrdered() = false")
	}
	if !equalIDs(positions(events), []int64{b.ID, a.ID}) {
		t.Fatalf("order = %v, want [%d %d]", positions(events), b.ID, a.ID)
	}

	if events, ok := s.MoveEventOrdered(ctx, 99, 0); ok || events != nil {
		t.Fatalf("MoveEventOrdered(unknown) = %v, %v, want nil, false", events, ok)
	}
}

func TestMoveEventNeverDuplicatesPositions(t *testing.T) {
	targets := []int{0, 1, 2, 3, 4, 10, -3}
	for _, target := range targets {
		ctx := context.Background()
		s, _ := newTestStore(t)
		task := s.AddTask(ctx, "t", "")
		other := s.AddTask(ctx, "other", "")
		var ids []int64
		for i := 0; i < 4; i++ {
			ids = append(ids, s.AddEvent(ctx, task.ID, "e", "", models.PriorityMedium, 0, nil).ID)
		}
		foreign := s.AddEvent(ctx, other.ID, "f", "", models.PriorityMedium, 0, nil)

		moved := ids[1]
		s.MoveEvent(ctx, moved, target)

		events := s.EventsForTask(task.ID)
		if len(events) != 4 {
			t.Fatalf("target %d: %d events, want 4", target, len(events))
		}
		for i, e := range events {
			if e.Position != i {
				t.Fatalf("target %d: event %d position = %d, want %d", target, e.ID, e.Position, i)
			}
		}

		want := clampIndex(target, 3)
		if events[want].ID != moved {
			t.Fatalf("target %d: moved event at index %d, want %d (order %v)", target, indexOf(events, moved), want, positions(events))
		}
		if got, _ := s.Event(foreign.ID); got.Position != 0 {
			t.Fatalf("target %d: foreign event position = %d, want 0", target, got.Position)
		}
	}
}

func clampIndex(i, siblings int) int {
	if i < 0 {
		return 0
	}
	if i > siblings {
		return siblings
	}
	return i
}

func indexOf(events []models.Event, id int64) int {
	for i, e := range events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func TestUpdateEventKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	a := s.AddTask(ctx, "a", "")
	b := s.AddTask(ctx, "b", "")
	s.AddEvent(ctx, a.ID, "a0", "", models.PriorityMedium, 0, nil)
	e := s.AddEvent(ctx, a.ID, "a1", "", models.PriorityMedium, 0, nil)
	s.AddEvent(ctx, b.ID, "b0", "", models.PriorityMedium, 0, nil)

	e.Position = 0
	e.Title = "renamed"
	got, _ := s.UpdateEvent(ctx, e)
	if got.Position != 1 || got.Title != "renamed" {
		t.Fatalf("updated event = %+v, want position 1 title renamed", got)
	}

	e.TaskID = b.ID
	got, _ = s.UpdateEvent(ctx, e)
	if got.TaskID != b.ID || got.Position != 1 {
		t.Fatalf("moved event = task %d position %d, want task %d position 1", got.TaskID, got.Position, b.ID)
	}
}

func TestUpdateEventClampsNegativeTimes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	task := s.AddTask(ctx, "t", "")
	e := s.AddEvent(ctx, task.ID, "e", "", models.PriorityMedium, 10, nil)

	e.TimeSpentHours = -3
	e.ActualDuration = -10
	e.EstimatedDuration = -5
	got, ok := s.UpdateEvent(ctx, e)
	if !ok {
		t.Fatal("UpdateEvent() = false")
	}
	if got.TimeSpentHours != 0 || got.ActualDuration != 0 || got.EstimatedDuration != 0 {
		t.Fatalf("updated event = hours %v actual %d estimated %d, want all 0",
			got.TimeSpentHours, got.ActualDuration, got.EstimatedDuration)
	}
	if hours := taskByID(t, s, task.ID).TimeSpentHours; hours != 0 {
		t.Fatalf("task hours = %v, want 0", hours)
	}
}

func TestDeleteTaskCascades(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	keep := s.AddTask(ctx, "keep", "")
	drop := s.AddTask(ctx, "drop", "")
	s.AddEvent(ctx, drop.ID, "x", "", models.PriorityMedium, 0, nil)
	s.AddEvent(ctx, drop.ID, "y", "", models.PriorityMedium, 0, nil)
	kept := s.AddEvent(ctx, keep.ID, "z", "", models.PriorityMedium, 0, nil)

	if !s.DeleteTask(ctx, drop.ID) {
		t.Fatal("DeleteTask() = false")
	}
	if got := s.EventsForTask(drop.ID); len(got) != 0 || got == nil {
		t.Fatalf("EventsForTask(deleted) = %v, want empty list", got)
	}
	state := s.Snapshot()
	if len(state.Tasks) != 1 || len(state.Events) != 1 || state.Events[0].ID != kept.ID {
		t.Fatalf("state after cascade = %+v", state)
	}
}

func TestSelection(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	a := s.AddTask(ctx, "a", "")
	b := s.AddTask(ctx, "b", "")

	if !s.SelectTask(a.ID) {
		t.Fatal("SelectTask(a) = false")
	}
	if s.SelectTask(99) {
		t.Fatal("SelectTask(99) = true")
	}
	sel, ok := s.Selected()
	if !ok || sel.Task.ID != a.ID {
		t.Fatalf("selection after unknown id = %v, %v, want task %d", sel.Task.ID, ok, a.ID)
	}

	s.AddEvent(ctx, a.ID, "e", "", models.PriorityMedium, 0, nil)
	sel, _ = s.Selected()
	if sel.TotalEventsCount != 1 {
		t.Fatalf("selection not refreshed: %d events", sel.TotalEventsCount)
	}

	s.DeleteTask(ctx, b.ID)
	if _, ok := s.Selected(); !ok {
		t.Fatal("deleting another task cleared the selection")
	}
	s.DeleteTask(ctx, a.ID)
	if _, ok := s.Selected(); ok {
		t.Fatal("selection survived deletion of the selected task")
	}

	c := s.AddTask(ctx, "c", "")
	s.SelectTask(c.ID)
	s.ClearSelection()
	if _, ok := s.Selected(); ok {
		t.Fatal("ClearSelection() left a selection")
	}
}

func TestSubscribePublishesSnapshots(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var states []State
	unsubscribe := s.Subscribe(func(st State) { states = append(states, st) })
	if len(states) != 1 || len(states[0].Tasks) != 0 {
		t.Fatalf("initial delivery = %+v", states)
	}

	task := s.AddTask(ctx, "t", "")
	s.AddEvent(ctx, task.ID, "e", "", models.PriorityMedium, 0, nil)
	s.SelectTask(task.ID)
	if len(states) != 4 {
		t.Fatalf("got %d states, want 4", len(states))
	}
	last := states[3]
	if last.Selected == nil || last.Selected.Task.ID != task.ID {
		t.Fatalf("selected = %+v", last.Selected)
	}
	if len(last.Board) != 1 || last.Board[0].TotalEventsCount != 1 {
		t.Fatalf("board = %+v", last.Board)
	}

	// Snapshots are copies.
	states[2].Tasks[0].Title = "mutated"
	if taskByID(t, s, task.ID).Title != "t" {
		t.Fatal("listener mutation leaked into the store")
	}

	unsubscribe()
	s.AddTask(ctx, "u", "")
	if len(states) != 4 {
		t.Fatalf("listener called after unsubscribe")
	}
	if s.ListenerCount() != 0 {
		t.Fatalf("ListenerCount() = %d, want 0", s.ListenerCount())
	}
}

func TestPersistAndReload(t *testing.T) {
	ctx := context.Background()
	s, prefs := newTestStore(t)
	task := s.AddTask(ctx, "persisted", "desc")
	due := time.Date(2026, 4, 2, 18, 30, 0, 0, time.Local)
	e := s.AddEvent(ctx, task.ID, "e", "d", models.PriorityUrgent, 45, &due)
	s.AddEvent(ctx, task.ID, "no due", "", models.PriorityLow, 0, nil)
	s.UpdateEventStatus(ctx, e.ID, models.EventInProgress)

	raw, _, _ := prefs.Get(ctx, KeyEvents)
	var records []map[string]any
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		t.Fatalf("stored events are not JSON: %v", err)
	}
	if _, ok := records[1]["dueDate"]; ok {
		t.Fatalf("absent due date was written: %v", records[1])
	}
	if records[0]["dueDate"] != "2026-04-02T18:30:00" {
		t.Fatalf("dueDate = %v, want 2026-04-02T18:30:00", records[0]["dueDate"])
	}

	reloaded, err := Open(ctx, prefs, Options{Logger: testLogger(), Clock: testClock()})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got, ok := reloaded.Task(task.ID)
	if !ok {
		t.Fatal("task missing after reload")
	}
	if got.Task.Title != "persisted" || got.Task.Status != models.TaskInProgress || got.TotalEventsCount != 2 {
		t.Fatalf("reloaded task = %+v", got)
	}
	if got.Events[0].DueDate == nil || !got.Events[0].DueDate.Equal(due) {
		t.Fatalf("dueDate = %v, want %v", got.Events[0].DueDate, due)
	}
	if got.Events[1].DueDate != nil {
		t.Fatalf("dueDate = %v, want nil", got.Events[1].DueDate)
	}

	next := reloaded.AddTask(ctx, "next", "")
	if next.ID != task.ID+1 {
		t.Fatalf("next id = %d, want %d", next.ID, task.ID+1)
	}
}

func TestOpenToleratesPartialRecords(t *testing.T) {
	ctx := context.Background()
	prefs := memory.New(map[string]string{
		KeyTasks:  `[{"id":3,"title":"old","createdAt":"2024-01-02T03:04:05","updatedAt":"2024-01-02T03:04:05.123"}]`,
		KeyEvents: `[{"id":8,"taskId":3,"title":"e","createdAt":"2024-01-02T03:04:05","updatedAt":"2024-01-02T03:04:05","dueDate":null,"description":null}]`,
	})
	s, err := Open(ctx, prefs, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	twe, ok := s.Task(3)
	if !ok {
		t.Fatal("task 3 missing")
	}
	if twe.Task.Description != "" || !twe.Task.IsActive {
		t.Fatalf("task defaults = %+v", twe.Task)
	}
	e := twe.Events[0]
	if e.Priority != models.PriorityMedium || e.Status != models.EventPending || e.Position != 0 || e.DueDate != nil || e.Description != "" {
		t.Fatalf("event defaults = %+v", e)
	}
	if e.UpdatedAt.Nanosecond() != 0 || twe.Task.UpdatedAt.Nanosecond() != 123000000 {
		t.Fatalf("fractional seconds = %d, %d", e.UpdatedAt.Nanosecond(), twe.Task.UpdatedAt.Nanosecond())
	}
	if got := s.AddTask(ctx, "n", ""); got.ID != 4 {
		t.Fatalf("counter not repaired: id = %d, want 4", got.ID)
	}
	if v, _, _ := prefs.Get(ctx, KeyDataVersion); v != "1" {
		t.Fatalf("data_version = %q, want 1", v)
	}
}

func TestOpenAcceptsDatesWithoutSeconds(t *testing.T) {
	ctx := context.Background()
	prefs := memory.New(map[string]string{
		KeyTasks:  `[{"id":1,"title":"t","createdAt":"2025-01-01T10:00","updatedAt":"2025-01-01T10:30"}]`,
		KeyEvents: `[{"id":1,"taskId":1,"title":"e","createdAt":"2025-01-01T10:00","updatedAt":"2025-01-01T10:00","dueDate":"2025-02-01T09:15"}]`,
	})
	s, err := Open(ctx, prefs, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	twe, ok := s.Task(1)
	if !ok || len(twe.Events) != 1 {
		t.Fatalf("collections discarded: task found %v, events %d", ok, len(twe.Events))
	}
	if got := twe.Task.UpdatedAt; got.Hour() != 10 || got.Minute() != 30 {
		t.Fatalf("updatedAt = %v, want 10:30", got)
	}
	if due := twe.Events[0].DueDate; due == nil || due.Minute() != 15 {
		t.Fatalf("dueDate = %v, want 09:15", due)
	}
}

func TestOpenDiscardsCorruptCollection(t *testing.T) {
	ctx := context.Background()
	prefs := memory.New(map[string]string{
		KeyTasks:  `{not json`,
		KeyEvents: `[{"id":1,"taskId":1,"title":"e","priority":"SOMEDAY","createdAt":"2024-01-02T03:04:05","updatedAt":"2024-01-02T03:04:05"}]`,
	})
	s, err := Open(ctx, prefs, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	state := s.Snapshot()
	if len(state.Tasks) != 0 || len(state.Events) != 0 {
		t.Fatalf("corrupt data loaded: %+v", state)
	}
}

func TestSeedSampleData(t *testing.T) {
	ctx := context.Background()
	prefs := memory.New(nil)
	s, err := Open(ctx, prefs, Options{Logger: testLogger(), Clock: testClock(), SeedSampleData: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	state := s.Snapshot()
	if len(state.Tasks) != 2 || len(state.Events) != 4 {
		t.Fatalf("sample board = %d tasks, %d events", len(state.Tasks), len(state.Events))
	}
	if state.Tasks[0].Status != models.TaskInProgress || state.Tasks[0].TimeSpentHours != 2.5 {
		t.Fatalf("sample task 1 = %s/%v, want IN_PROGRESS/2.5", state.Tasks[0].Status, state.Tasks[0].TimeSpentHours)
	}

	again, err := Open(ctx, prefs, Options{Logger: testLogger(), SeedSampleData: true})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if n := len(again.Snapshot().Tasks); n != 2 {
		t.Fatalf("sample data seeded twice: %d tasks", n)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestStore(t)
	a := src.AddTask(ctx, "a", "first")
	b := src.AddTask(ctx, "b", "second")
	due := time.Date(2026, 5, 6, 7, 8, 9, 500000000, time.Local)
	e1 := src.AddEvent(ctx, a.ID, "e1", "", models.PriorityHigh, 30, &due)
	src.AddEvent(ctx, a.ID, "e2", "", models.PriorityLow, 15, nil)
	src.AddEvent(ctx, b.ID, "e3", "", models.PriorityUrgent, 0, nil)
	src.UpdateEventStatus(ctx, e1.ID, models.EventCompleted)
	src.MoveEvent(ctx, e1.ID, 5)

	blob, err := src.ExportSnapshot()
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if !strings.Contains(string(blob), "\n  \"version\": 1") {
		t.Fatalf("export is not pretty-printed: %s", blob)
	}

	dst, _ := newTestStore(t)
	if err := dst.ImportSnapshot(ctx, blob); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}

	want, got := src.Snapshot(), dst.Snapshot()
	if len(want.Tasks) != len(got.Tasks) || len(want.Events) != len(got.Events) {
		t.Fatalf("sizes differ: %d/%d vs %d/%d", len(want.Tasks), len(want.Events), len(got.Tasks), len(got.Events))
	}
	for i := range want.Tasks {
		w, g := want.Tasks[i], got.Tasks[i]
		if w.ID != g.ID || w.Title != g.Title || w.Description != g.Description || w.Status != g.Status ||
			w.TimeSpentHours != g.TimeSpentHours || !w.CreatedAt.Equal(g.CreatedAt) || !w.UpdatedAt.Equal(g.UpdatedAt) {
			t.Fatalf("task %d differs: %+v vs %+v", i, w, g)
		}
	}
	for i := range want.Events {
		w, g := want.Events[i], got.Events[i]
		if w.ID != g.ID || w.TaskID != g.TaskID || w.Title != g.Title || w.Priority != g.Priority ||
			w.Status != g.Status || w.Position != g.Position || w.EstimatedDuration != g.EstimatedDuration ||
			!w.UpdatedAt.Equal(g.UpdatedAt) || (w.DueDate == nil) != (g.DueDate == nil) {
			t.Fatalf("event %d differs: %+v vs %+v", i, w, g)
		}
		if w.DueDate != nil && !w.DueDate.Equal(*g.DueDate) {
			t.Fatalf("event %d dueDate %v vs %v", i, w.DueDate, g.DueDate)
		}
	}

	if next := dst.AddTask(ctx, "n", ""); next.ID != 3 {
		t.Fatalf("next task id after import = %d, want 3", next.ID)
	}
}

func TestImportRecomputesStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	blob := `{"version":1,"nextTaskId":5,"nextEventId":1,
		"tasks":[{"id":1,"title":"x","status":"COMPLETED","timeSpentHours":9,"createdAt":"2025-01-01T10:00:00","updatedAt":"2025-01-01T10:00:00"}],
		"events":[]}`
	if err := s.ImportSnapshot(ctx, []byte(blob)); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	state := s.Snapshot()
	if len(state.Tasks) != 1 || state.Tasks[0].ID != 1 {
		t.Fatalf("tasks = %+v", state.Tasks)
	}
	if state.Tasks[0].Status != models.TaskPending || state.Tasks[0].TimeSpentHours != 0 {
		t.Fatalf("status = %s/%v, want PENDING/0", state.Tasks[0].Status, state.Tasks[0].TimeSpentHours)
	}
	if next := s.AddTask(ctx, "n", ""); next.ID != 5 {
		t.Fatalf("next id = %d, want 5", next.ID)
	}
}

func TestImportWithoutEventsArray(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	old := s.AddTask(ctx, "old", "")
	s.AddEvent(ctx, old.ID, "e", "", models.PriorityMedium, 0, nil)

	blob := `{"version":1,"tasks":[{"id":4,"title":"x","createdAt":"2025-01-01T10:00","updatedAt":"2025-01-01T10:00:00"}]}`
	if err := s.ImportSnapshot(ctx, []byte(blob)); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	state := s.Snapshot()
	if len(state.Tasks) != 1 || state.Tasks[0].ID != 4 || len(state.Events) != 0 {
		t.Fatalf("state = %+v", state)
	}
	if events := s.EventsForTask(4); events == nil || len(events) != 0 {
		t.Fatalf("events = %v, want empty", events)
	}
}

func TestImportFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	s, prefs := newTestStore(t)
	task := s.AddTask(ctx, "keep", "")
	s.AddEvent(ctx, task.ID, "e", "", models.PriorityMedium, 0, nil)
	storedBefore, _, _ := prefs.Get(ctx, KeyTasks)

	blobs := []struct {
		name string
		blob string
		want error
	}{
		{"not json", "not json", ErrInvalidEnvelope},
		{"empty", "", ErrInvalidEnvelope},
		{"missing collections", `{"version":1}`, ErrInvalidEnvelope},
		{"bad status", `{"tasks":[{"id":1,"title":"x","status":"DONE","createdAt":"2025-01-01T10:00:00","updatedAt":"2025-01-01T10:00:00"}],"events":[]}`, ErrInvalidEnvelope},
		{"bad date", `{"tasks":[{"id":1,"title":"x","createdAt":"yesterday","updatedAt":"2025-01-01T10:00:00"}],"events":[]}`, ErrInvalidEnvelope},
		{"duplicate ids", `{"tasks":[{"id":1,"title":"x","createdAt":"2025-01-01T10:00:00","updatedAt":"2025-01-01T10:00:00"},{"id":1,"title":"y","createdAt":"2025-01-01T10:00:00","updatedAt":"2025-01-01T10:00:00"}],"events":[]}`, ErrInvalidEnvelope},
		{"future version", `{"version":7,"tasks":[],"events":[]}`, ErrUnsupportedVersion},
	}
	for _, tt := range blobs {
		err := s.ImportSnapshot(ctx, []byte(tt.blob))
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}

	state := s.Snapshot()
	if len(state.Tasks) != 1 || state.Tasks[0].Title != "keep" || len(state.Events) != 1 {
		t.Fatalf("state changed after failed imports: %+v", state)
	}
	if storedAfter, _, _ := prefs.Get(ctx, KeyTasks); storedAfter != storedBefore {
		t.Fatalf("persisted tasks changed: %s -> %s", storedBefore, storedAfter)
	}
}

func TestImportClearsStaleSelection(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		s.AddTask(ctx, "t", "")
	}
	s.SelectTask(3)

	if err := s.ImportSnapshot(ctx, []byte(`{"tasks":[],"events":[]}`)); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	if _, ok := s.Selected(); ok {
		t.Fatal("selection points at a task that no longer exists")
	}
}
