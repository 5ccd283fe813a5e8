package appointments

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxPurposeLength caps stored purposes, in runes.
const MaxPurposeLength = 140

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Appointment is a booked slot for one client. (ClientID, DateTime) is unique.
type Appointment struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	DateTime  time.Time `json:"dateTime"`
	Purpose   string    `json:"purpose,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpdateRequest carries the fields to change; nil fields are left alone.
type UpdateRequest struct {
	DateTime *time.Time
	Purpose  *string
	Status   *Status
}

func (r UpdateRequest) apply(appt *Appointment) error {
	if r.DateTime != nil {
		if r.DateTime.IsZero() {
			return ErrMissingDateTime
		}
		appt.DateTime = Slot(*r.DateTime)
	}
	if r.Purpose != nil {
		appt.Purpose = NormalizePurpose(*r.Purpose)
	}
	if r.Status != nil {
		if !r.Status.Valid() {
			return ErrInvalidStatus
		}
		appt.Status = *r.Status
	}
	return nil
}

// Slot drops seconds and below, keeping the location.
func Slot(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// NormalizePurpose trims purpose and caps it at MaxPurposeLength runes.
func NormalizePurpose(purpose string) string {
	purpose = strings.TrimSpace(purpose)
	if utf8.RuneCountInString(purpose) <= MaxPurposeLength {
		return purpose
	}
	return strings.TrimSpace(string([]rune(purpose)[:MaxPurposeLength]))
}

func validateCreate(clientID string, at time.Time) error {
	if strings.TrimSpace(clientID) == "" {
		return ErrMissingClientID
	}
	if at.IsZero() {
		return ErrMissingDateTime
	}
	return nil
}
