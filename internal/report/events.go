package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventIndex    EventType = "index"
	EventMatch    EventType = "match"
	EventGroup    EventType = "group"
	EventValidate EventType = "validate"
	EventBackup   EventType = "backup"
	EventDelete   EventType = "delete"
	EventPhase    EventType = "phase"
	EventError    EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single occurrence in an engine run
type Event struct {
	Timestamp  time.Time         `json:"ts"`
	Level      EventLevel        `json:"level"`
	Event      EventType         `json:"event"`
	Phase      string            `json:"phase,omitempty"`
	Path       string            `json:"path,omitempty"`
	MatchPath  string            `json:"match_path,omitempty"`
	Status     string            `json:"status,omitempty"`
	MatchType  string            `json:"match_type,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	GroupKey   string            `json:"group_key,omitempty"`
	Check      string            `json:"check,omitempty"`
	Score      float64           `json:"score,omitempty"`
	Bytes      int64             `json:"bytes,omitempty"`
	Duration   int64             `json:"duration_ms,omitempty"` // in milliseconds
	Reason     string            `json:"reason,omitempty"`
	Error      string            `json:"error,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Sink receives progress notifications from the long-running engines
// Implementations must be safe for concurrent use
type Sink interface {
	// FileProcessed records a single engine outcome: an index upsert,
	// a vetting verdict, a duplicate group forming, or a cleanup
	// backup/delete action
	FileProcessed(ev *Event) error
	// GroupValidated records one validation check against a duplicate group
	GroupValidated(groupKey, check string, passed bool, detail string) error
	// PhaseComplete marks the end of an engine phase
	PhaseComplete(phase string, took time.Duration) error
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate filename with timestamp
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Open file for writing
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	// Filter by minimum level
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil // Skip events below minimum level
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// FileProcessed writes a per-file outcome event
func (l *EventLogger) FileProcessed(ev *Event) error {
	return l.Log(ev)
}

// GroupValidated writes one validation check outcome for a duplicate group
// Failed checks are logged at warning level so they survive info filtering
func (l *EventLogger) GroupValidated(groupKey, check string, passed bool, detail string) error {
	level := LevelInfo
	status := "passed"
	if !passed {
		level = LevelWarning
		status = "failed"
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventValidate,
		GroupKey: groupKey,
		Check:    check,
		Status:   status,
		Reason:   detail,
	})
}

// PhaseComplete writes a phase boundary event with the elapsed time
func (l *EventLogger) PhaseComplete(phase string, took time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventPhase,
		Phase:    phase,
		Duration: took.Milliseconds(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}

// NopSink discards every notification
type NopSink struct{}

func (NopSink) FileProcessed(*Event) error { return nil }

func (NopSink) GroupValidated(string, string, bool, string) error { return nil }

func (NopSink) PhaseComplete(string, time.Duration) error { return nil }

// MultiSink fans each notification out to every sink in order
// The first error encountered is returned after all sinks have been notified
type MultiSink []Sink

func (m MultiSink) FileProcessed(ev *Event) error {
	var first error
	for _, s := range m {
		if err := s.FileProcessed(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) GroupValidated(groupKey, check string, passed bool, detail string) error {
	var first error
	for _, s := range m {
		if err := s.GroupValidated(groupKey, check, passed, detail); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) PhaseComplete(phase string, took time.Duration) error {
	var first error
	for _, s := range m {
		if err := s.PhaseComplete(phase, took); err != nil && first == nil {
			first = err
		}
	}
	return first
}
