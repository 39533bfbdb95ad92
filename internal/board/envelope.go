package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"kanban/internal/models"
)

var (
	// ErrInvalidEnvelope marks an import blob that is not a usable backup.
	ErrInvalidEnvelope = errors.New("invalid envelope")
	// ErrUnsupportedVersion marks an envelope written by a newer data version.
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
)

// envelope is the export/import backup format.
type envelope struct {
	Version     int           `json:"version"`
	ExportDate  string        `json:"exportDate"`
	NextTaskID  int64         `json:"nextTaskId"`
	NextEventID int64         `json:"nextEventId"`
	Tasks       []taskRecord  `json:"tasks"`
	Events      []eventRecord `json:"events"`
}

type envelopeIn struct {
	Version     *int          `json:"version"`
	NextTaskID  *int64        `json:"nextTaskId"`
	NextEventID *int64        `json:"nextEventId"`
	Tasks       []taskRecord  `json:"tasks"`
	Events      []eventRecord `json:"events"`
}

const envelopeSchemaJSON = `{
  "type": "object",
  "required": ["tasks"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "exportDate": {"type": "string"},
    "nextTaskId": {"type": "integer", "minimum": 1},
    "nextEventId": {"type": "integer", "minimum": 1},
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "createdAt", "updatedAt"],
        "properties": {
          "id": {"type": "integer"},
          "title": {"type": "string"},
          "description": {"type": ["string", "null"]},
          "status": {"enum": ["PENDING", "IN_PROGRESS", "COMPLETED", null]},
          "timeSpentHours": {"type": ["number", "null"], "minimum": 0},
          "createdAt": {"type": "string"},
          "updatedAt": {"type": "string"},
          "isActive": {"type": ["boolean", "null"]}
        }
      }
    },
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "taskId", "title", "createdAt", "updatedAt"],
        "properties": {
          "id": {"type": "integer"},
          "taskId": {"type": "integer"},
          "title": {"type": "string"},
          "description": {"type": ["string", "null"]},
          "priority": {"enum": ["LOW", "MEDIUM", "HIGH", "URGENT", null]},
          "status": {"enum": ["PENDING", "IN_PROGRESS", "COMPLETED", "CANCELLED", null]},
          "estimatedDuration": {"type": ["integer", "null"], "minimum": 0},
          "actualDuration": {"type": ["integer", "null"], "minimum": 0},
          "timeSpentHours": {"type": ["number", "null"], "minimum": 0},
          "createdAt": {"type": "string"},
          "updatedAt": {"type": "string"},
          "dueDate": {"type": ["string", "null"]},
          "position": {"type": ["integer", "null"]}
        }
      }
    }
  }
}`

var envelopeSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal envelope schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.json", doc); err != nil {
		return nil, fmt.Errorf("add envelope schema: %w", err)
	}
	schema, err := c.Compile("envelope.json")
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return schema, nil
})

// ExportSnapshot renders the whole board as a pretty-printed envelope.
func (s *Store) ExportSnapshot() ([]byte, error) {
	s.mu.Lock()
	env := envelope{
		Version:     CurrentDataVersion,
		ExportDate:  formatDate(s.clock()),
		NextTaskID:  s.nextTaskID,
		NextEventID: s.nextEventID,
		Tasks:       taskRecords(s.tasks),
		Events:      eventRecords(s.events),
	}
	s.mu.Unlock()

	out, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out, nil
}

// parseEnvelope validates and decodes an import blob without touching the store.
func parseEnvelope(blob []byte) (envelopeIn, []models.Task, []models.Event, error) {
	schema, err := envelopeSchema()
	if err != nil {
		return envelopeIn{}, nil, nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(blob))
	if err != nil {
		return envelopeIn{}, nil, nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := schema.Validate(doc); err != nil {
		return envelopeIn{}, nil, nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	var in envelopeIn
	if err := json.Unmarshal(blob, &in); err != nil {
		return envelopeIn{}, nil, nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if in.Version != nil && *in.Version > CurrentDataVersion {
		return envelopeIn{}, nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *in.Version)
	}

	tasks, err := decodeTaskRecords(in.Tasks)
	if err != nil {
		return envelopeIn{}, nil, nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	events, err := decodeEventRecords(in.Events)
	if err != nil {
		return envelopeIn{}, nil, nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	seenTasks := make(map[int64]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := seenTasks[t.ID]; dup {
			return envelopeIn{}, nil, nil, fmt.Errorf("%w: duplicate task id %d", ErrInvalidEnvelope, t.ID)
		}
		seenTasks[t.ID] = struct{}{}
	}
	seenEvents := make(map[int64]struct{}, len(events))
	for _, e := range events {
		if _, dup := seenEvents[e.ID]; dup {
			return envelopeIn{}, nil, nil, fmt.Errorf("%w: duplicate event id %d", ErrInvalidEnvelope, e.ID)
		}
		seenEvents[e.ID] = struct{}{}
	}
	return in, tasks, events, nil
}

// ImportSnapshot replaces the whole board with the envelope's contents. A
// missing events array imports as no events. On any error the current board is
// left untouched.
func (s *Store) ImportSnapshot(ctx context.Context, blob []byte) error {
	in, tasks, events, err := parseEnvelope(blob)
	if err != nil {
		s.logger.Warn("import rejected", slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = tasks
	s.events = events
	s.nextTaskID, s.nextEventID = 1, 1
	if in.NextTaskID != nil {
		s.nextTaskID = *in.NextTaskID
	}
	if in.NextEventID != nil {
		s.nextEventID = *in.NextEventID
	}
	s.repairCounters()
	s.commit(ctx)

	s.logger.Info("board imported", "tasks", len(tasks), "events", len(events))
	return nil
}
