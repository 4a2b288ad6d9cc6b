package outbox

import (
	"encoding/json"
	"errors"
	"time"
)

// Status constants for outbox entry lifecycle.
const (
	StatusPending   = "pending"
	StatusRetrying  = "retrying"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// ValidStatuses lists every outbox entry status.
var ValidStatuses = []string{StatusPending, StatusRetrying, StatusDone, StatusFailed, StatusAbandoned}

// ActionTypeEmail is the only side effect routed through the outbox.
const ActionTypeEmail = "email"

// DefaultMaxAttempts is applied when an entry is validated without one.
const DefaultMaxAttempts = 5

// Notification template keys carried in EmailPayload.Template.
const (
	TemplateBookingConfirmed  = "booking_confirmed"
	TemplateBookingWaitlisted = "booking_waitlisted"
	TemplateBookingCancelled  = "booking_cancelled"
	TemplateWaitlistPromoted  = "waitlist_promoted"
	TemplateCourseCancelled   = "course_cancelled"
	TemplateEnrollmentSummary = "enrollment_summary"
)

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrEmptyCreatedAt  = errors.New("created_at must be set")
	ErrEmptyRecipient  = errors.New("email recipient is required")
)

// EmailPayload is the JSON body of an email entry.
type EmailPayload struct {
	Template string `json:"template"`
	To       string `json:"to"`
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// Entry represents a single queued notification.
type Entry struct {
	ID              string
	ActionType      string
	Payload         string // JSON payload for replay
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	NextAttemptAt   time.Time
	CreatedAt       time.Time
	ExternalID      string // provider message ID
	ErrorMessage    string
}

// NewEmailEntry builds a pending email entry from a payload.
// PRE: p.To is non-empty
// POST: Returns a pending entry due immediately
func NewEmailEntry(id string, p EmailPayload, now time.Time) (Entry, error) {
	if p.To == "" {
		return Entry{}, ErrEmptyRecipient
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:            id,
		ActionType:    ActionTypeEmail,
		Payload:       string(raw),
		Status:        StatusPending,
		MaxAttempts:   DefaultMaxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}

// EmailPayload decodes the entry payload.
func (e *Entry) EmailPayload() (EmailPayload, error) {
	var p EmailPayload
	err := json.Unmarshal([]byte(e.Payload), &p)
	return p, err
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise; MaxAttempts defaulted
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return ErrEmptyCreatedAt
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// CanRetry returns true if the entry can be retried.
// PRE: Status and Attempts fields are set
// POST: Returns true for pending/retrying/failed with attempts < max
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying || e.Status == StatusFailed) &&
		e.Attempts < e.MaxAttempts
}

// IsDue reports whether the entry may be attempted at now.
func (e *Entry) IsDue(now time.Time) bool {
	return e.CanRetry() && !now.Before(e.NextAttemptAt)
}

// IsTerminal returns true if the entry has reached a terminal state.
func (e *Entry) IsTerminal() bool {
	if e.Status == StatusDone || e.Status == StatusAbandoned {
		return true
	}
	return e.Status == StatusFailed && e.Attempts >= e.MaxAttempts
}

// MarkAttempt records a delivery attempt.
// POST: Attempts incremented, LastAttemptedAt = now, status retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry as delivered.
// POST: Status done, ExternalID recorded, error cleared
func (e *Entry) MarkSuccess(externalID string) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.ErrorMessage = ""
}

// MarkFailed records a failed attempt and schedules the next one.
// POST: ErrorMessage set; status failed once attempts are exhausted,
// otherwise NextAttemptAt moves forward by the backoff delay
func (e *Entry) MarkFailed(err error, now time.Time, baseDelay, maxDelay time.Duration) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
		return
	}
	e.NextAttemptAt = now.Add(e.NextRetryDelay(baseDelay, maxDelay))
}

// MarkAbandoned marks the entry as abandoned by an admin.
func (e *Entry) MarkAbandoned() {
	e.Status = StatusAbandoned
}

// Requeue resets a failed entry for another round of attempts.
// PRE: entry is failed
// POST: Attempts reset, status pending, due at now
func (e *Entry) Requeue(now time.Time) {
	e.Attempts = 0
	e.Status = StatusPending
	e.NextAttemptAt = now
	e.ErrorMessage = ""
}

// NextRetryDelay calculates the delay before the next retry attempt.
// Uses exponential backoff: 2^attempts * baseDelay, capped at maxDelay.
func (e *Entry) NextRetryDelay(baseDelay time.Duration, maxDelay time.Duration) time.Duration {
	if e.Attempts >= 30 {
		return maxDelay
	}
	delay := baseDelay * (1 << e.Attempts)
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}
