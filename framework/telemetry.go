package framework

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// EventType categorizes telemetry events.
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventRunFinish      EventType = "run_finish"
	EventRunRejected    EventType = "run_rejected"
	EventProjectStart   EventType = "project_start"
	EventProjectFinish  EventType = "project_finish"
	EventFileError      EventType = "file_error"
	EventProjectMissing EventType = "project_missing"
)

// Event captures structured telemetry data.
type Event struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id,omitempty"`
	Project   string                 `json:"project,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Telemetry receives scan lifecycle events. Implementations must be safe for
// concurrent use since workers emit from their own goroutines.
type Telemetry interface {
	Emit(event Event)
}

// MultiplexTelemetry broadcasts events to multiple sinks.
type MultiplexTelemetry struct {
	Sinks []Telemetry
}

// Emit forwards the event to all registered sinks.
func (m MultiplexTelemetry) Emit(event Event) {
	for _, s := range m.Sinks {
		if s != nil {
			s.Emit(event)
		}
	}
}

// NopTelemetry drops every event.
type NopTelemetry struct{}

// Emit does nothing.
func (NopTelemetry) Emit(Event) {}

// JSONFileTelemetry writes events as newline-delimited JSON to a file.
// This allows external tools to tail and process the stream in real-time.
type JSONFileTelemetry struct {
	path string
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewJSONFileTelemetry opens (or creates) the log file.
func NewJSONFileTelemetry(path string) (*JSONFileTelemetry, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONFileTelemetry{
		path: path,
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes the JSON record.
func (j *JSONFileTelemetry) Emit(event Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.enc != nil {
		_ = j.enc.Encode(event)
	}
}

// Close releases the file handle.
func (j *JSONFileTelemetry) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		j.enc = nil
		return err
	}
	return nil
}

// LoggerTelemetry emits events through a structured logger at debug level,
// except file errors and missing projects which are warnings.
type LoggerTelemetry struct {
	Logger *slog.Logger
}

// Emit logs the event.
func (t LoggerTelemetry) Emit(event Event) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	switch event.Type {
	case EventFileError, EventProjectMissing:
		level = slog.LevelWarn
	}
	args := []any{"event", string(event.Type)}
	if event.RunID != "" {
		args = append(args, "run_id", event.RunID)
	}
	if event.Project != "" {
		args = append(args, "project", event.Project)
	}
	for k, v := range event.Metadata {
		args = append(args, k, v)
	}
	msg := event.Message
	if msg == "" {
		msg = string(event.Type)
	}
	logger.Log(context.Background(), level, msg, args...)
}
