package domain

import (
	"errors"
	"testing"
)

func validEvent() *Event {
	return &Event{
		UserID:         "7a2f73f4-76a5-4f3c-9b7a-0f6f3a3e5f21",
		IdentityNumber: "12345678901",
		EventType:      EventUserEducationCreated,
		RecordID:       "edu-1",
		DocumentNumber: "BARCODE1",
	}
}

func TestValidateForEnqueue_Valid(t *testing.T) {
	if err := ValidateForEnqueue(validEvent()); err != nil {
		t.Fatalf("Valid event rejected: %v", err)
	}
}

func TestValidateForEnqueue_Rejections(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(e *Event)
		wantField string
	}{
		{"empty userId", func(e *Event) { e.UserID = "" }, "userId"},
		{"non-GUID userId", func(e *Event) { e.UserID = "user-42" }, "userId"},
		{"short identity number", func(e *Event) { e.IdentityNumber = "1234567890" }, "identityNumber"},
		{"non-numeric identity number", func(e *Event) { e.IdentityNumber = "1234567890a" }, "identityNumber"},
		{"empty event type", func(e *Event) { e.EventType = "" }, "eventType"},
		{"empty record id", func(e *Event) { e.RecordID = "" }, "eventData.id"},
		{"empty document number", func(e *Event) { e.DocumentNumber = "" }, "eventData.documentNumber"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := validEvent()
			tc.mutate(event)

			err := ValidateForEnqueue(event)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tc.wantField {
				t.Errorf("Field mismatch: got %s, want %s", verr.Field, tc.wantField)
			}
		})
	}
}
