package events

import (
	"time"

	"github.com/spec-kit/factory-workflow/internal/domain"
)

// EventType enumerates the coarse push event names.
type EventType string

const (
	EventIncidentCreated EventType = "incident_created"
	EventIncidentUpdated EventType = "incident_updated"
	EventIdeaCreated     EventType = "idea_created"
	EventIdeaUpdated     EventType = "idea_updated"
)

// EventTypes lists every coarse event name.
var EventTypes = []EventType{EventIncidentCreated, EventIncidentUpdated, EventIdeaCreated, EventIdeaUpdated}

// EntityKind returns "incident" or "idea" for the event.
func (t EventType) EntityKind() string {
	switch t {
	case EventIncidentCreated, EventIncidentUpdated:
		return "incident"
	case EventIdeaCreated, EventIdeaUpdated:
		return "idea"
	}
	return ""
}

// Kinds returns the item kinds whose collections an event invalidates.
func (t EventType) Kinds() []domain.Kind {
	switch t.EntityKind() {
	case "incident":
		return []domain.Kind{domain.KindIncident}
	case "idea":
		return []domain.Kind{domain.KindPublicIdea, domain.KindSensitiveIdea}
	}
	return nil
}

// CreatedEvent returns the creation event type for a kind.
func CreatedEvent(kind domain.Kind) EventType {
	if kind.IsIdea() {
		return EventIdeaCreated
	}
	return EventIncidentCreated
}

// UpdatedEvent returns the update event type for a kind.
func UpdatedEvent(kind domain.Kind) EventType {
	if kind.IsIdea() {
		return EventIdeaUpdated
	}
	return EventIncidentUpdated
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents an item change emitted by the workflow service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ItemID    string      `json:"item_id"`
	Kind      domain.Kind `json:"kind"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TransitionPayload describes an accepted transition.
type TransitionPayload struct {
	Action    string        `json:"action"`
	OldStatus domain.Status `json:"old_status"`
	NewStatus domain.Status `json:"new_status"`
	Version   int64         `json:"version"`
}

// Invalidation is the coarse message relayed to clients. Subscribers key off
// EventType alone.
type Invalidation struct {
	EntityKind string    `json:"entity_kind"`
	EventType  EventType `json:"event_type"`
}

// InvalidationFor builds the coarse message for an event.
func InvalidationFor(e Event) Invalidation {
	return Invalidation{EntityKind: e.Type.EntityKind(), EventType: e.Type}
}
