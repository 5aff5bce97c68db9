package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionReset            EventType = "session_reset"
	EventSignedIn                EventType = "signed_in"
	EventSignedOut               EventType = "signed_out"
	EventOnboardingStepCompleted EventType = "onboarding_step_completed"
	EventOnboardingCompleted     EventType = "onboarding_completed"
)

// Event represents a session lifecycle event.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, sessionID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// SessionResetPayload payload.
type SessionResetPayload struct {
	Location string `json:"location"`
	Target   string `json:"target"`
}

// SignedInPayload payload.
type SignedInPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// OnboardingStepPayload payload.
type OnboardingStepPayload struct {
	Flow     string `json:"flow"`
	Step     string `json:"step"`
	NextStep int    `json:"next_step"`
}

// OnboardingCompletedPayload payload.
type OnboardingCompletedPayload struct {
	Flow  string `json:"flow"`
	Email string `json:"email,omitempty"`
}
