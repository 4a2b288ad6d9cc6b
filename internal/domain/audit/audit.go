package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category represents the kind of resource an audit event concerns.
type Category string

const (
	CategoryCourse   Category = "course"
	CategoryLesson   Category = "lesson"
	CategoryBooking  Category = "booking"
	CategoryCustomer Category = "customer"
	CategoryAccount  Category = "account"
	CategorySystem   Category = "system"
)

// Action represents the action that occurred.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionCancel   Action = "cancel"
	ActionEnroll   Action = "enroll"
	ActionUnenroll Action = "unenroll"
	ActionLogin    Action = "login"
	ActionExport   Action = "export"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Actor identifies who triggered an event. The zero value means "system".
type Actor struct {
	ID    string
	Email string
	Role  string
}

// Event is a single audit_log entry.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	ActorID      string    `json:"actor_id"`
	ActorEmail   string    `json:"actor_email"`
	ActorRole    string    `json:"actor_role"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	Description  string    `json:"description"`
	Metadata     string    `json:"metadata"`
}

// NewEvent creates an info-level event for the given actor.
// PRE: category and action are set
// POST: Returns an Event stamped with now
func NewEvent(actor Actor, category Category, action Action, now time.Time) Event {
	if actor.ID == "" {
		actor = Actor{ID: "system", Role: "system"}
	}
	return Event{
		ID:         uuid.New().String(),
		Timestamp:  now,
		Category:   category,
		Action:     action,
		Severity:   SeverityInfo,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
	}
}

// WithSeverity sets the severity level.
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithResource sets resource information.
func (e Event) WithResource(resourceType, resourceID string) Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithDescription sets the event description.
func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

// WithMetadata sets optional JSON metadata.
// PRE: metadata is valid JSON or empty
func (e Event) WithMetadata(metadata string) Event {
	e.Metadata = metadata
	return e
}
