package domain

import (
	"github.com/google/uuid"
)

// ValidateForEnqueue rejects malformed events before they enter the queue.
// Anything that passes here is processable; downstream failures are about
// the outside world, not the payload.
func ValidateForEnqueue(e *Event) error {
	if e.UserID == "" {
		return &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if _, err := uuid.Parse(e.UserID); err != nil {
		return &ValidationError{Field: "userId", Reason: "must be a valid GUID"}
	}
	if !isIdentityNumber(e.IdentityNumber) {
		return &ValidationError{Field: "identityNumber", Reason: "must be an 11-digit number"}
	}
	if e.EventType == "" {
		return &ValidationError{Field: "eventType", Reason: "must not be empty"}
	}
	if e.RecordID == "" {
		return &ValidationError{Field: "eventData.id", Reason: "must not be empty"}
	}
	if e.DocumentNumber == "" {
		return &ValidationError{Field: "eventData.documentNumber", Reason: "must not be empty"}
	}
	return nil
}

func isIdentityNumber(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
