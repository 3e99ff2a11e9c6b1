package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted during orchestration.
type EventType string

const (
	EventRunStarted      EventType = "orchestration.run.started"
	EventPhaseCompleted  EventType = "orchestration.phase.completed"
	EventRunCompleted    EventType = "orchestration.run.completed"
	EventRunFailed       EventType = "orchestration.run.failed"
	EventSafeModeEntered EventType = "orchestration.safemode.entered"
)

// Event captures a semantic orchestration event.
type Event struct {
	Type      EventType
	RunID     string
	PlanID    string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, runID, planID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		RunID:     runID,
		PlanID:    planID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
