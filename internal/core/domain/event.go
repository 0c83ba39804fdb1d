package domain

import (
	"time"
)

// EventStatus is a custom type for the queue status ENUM
type EventStatus string

const (
	StatusNew        EventStatus = "new"
	StatusProcessing EventStatus = "processing"
	StatusCompleted  EventStatus = "completed"
	StatusFailed     EventStatus = "failed"
)

// EventType tags which backend record a verification event belongs to.
type EventType string

const (
	EventUserEducationCreated EventType = "UserEducationCreated"
	EventUserSecurityCreated  EventType = "UserSecurityCreated"
	EventUserCvCreated        EventType = "UserCvCreated"
)

// Event is one queued request to verify a document and report the outcome.
// Rows are owned by the event repository; only the orchestrator mutates
// them after intake.
type Event struct {
	ID             int64
	UserID         string // Backend user GUID
	IdentityNumber string // 11-digit national identity number, verifier input only
	EventType      EventType
	RecordID       string // Type-specific record GUID to update on the backend
	DocumentNumber string // Barcode, verifier input
	Status         EventStatus
	Attempts       int
	LastError      *string // Nullable, cleared on success
	LockedAt       *time.Time
	NextAttemptAt  *time.Time // Nullable; nil on a failed row means "never retry"
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QueueStats holds per-status row counts for the inspection surface.
type QueueStats struct {
	New        int64 `json:"new"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// VerificationOutcome is the single definitive answer from the verifier.
type VerificationOutcome struct {
	Verified bool
	Detail   string
}

// Route maps an event type to the backend update shape used to report it.
type Route struct {
	EventType     EventType
	Endpoint      string         // e.g. "/api/UserEducationHistories"
	RecordIDField string         // e.g. "educationId", the intake field name
	Extra         map[string]any // Route-specific payload fields the backend requires
}

// BuildPayload shapes the full-state PUT body for this route.
// The update is keyed by the record id, so repeating it is safe.
func (r Route) BuildPayload(e *Event, outcome VerificationOutcome) map[string]any {
	payload := map[string]any{
		"id":               e.RecordID,
		"documentNumber":   e.DocumentNumber,
		"documentVerified": outcome.Verified,
		"approved":         outcome.Verified,
		"userId":           e.UserID,
		"hrDescription":    outcome.Detail,
	}
	for k, v := range r.Extra {
		payload[k] = v
	}
	return payload
}
