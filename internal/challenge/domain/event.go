package domain

import "time"

// EventType identifies the type of a world event.
type EventType string

const (
	// EventTypeChallengeResolved records a resolved challenge outcome.
	EventTypeChallengeResolved EventType = "CHALLENGE_RESOLVED"
	// EventTypeChallengePrompted records a director prompting a player.
	EventTypeChallengePrompted EventType = "CHALLENGE_PROMPTED"
	// EventTypeTriggerFired records an outcome trigger execution.
	EventTypeTriggerFired EventType = "TRIGGER_FIRED"
)

// IsValid reports whether the event type is supported.
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeChallengeResolved,
		EventTypeChallengePrompted,
		EventTypeTriggerFired:
		return true
	default:
		return false
	}
}

// Event captures an immutable world-scoped record of challenge activity.
type Event struct {
	ID          string
	WorldID     string
	Type        EventType
	ChallengeID string
	CharacterID string
	PayloadJSON []byte
	Timestamp   time.Time
}
