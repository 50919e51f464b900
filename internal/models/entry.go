package models

import "time"

type QueueEntry struct {
	ID                 string     `json:"id"`
	Token              string     `json:"token"`
	FullName           string     `json:"full_name"`
	PhoneNumber        string     `json:"phone_number,omitempty"`
	Department         string     `json:"department"`
	IntendedDepartment string     `json:"intended_department,omitempty"`
	Priority           string     `json:"priority"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	CalledAt           *time.Time `json:"called_at,omitempty"`
	ServedAt           *time.Time `json:"served_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	SkippedAt          *time.Time `json:"skipped_at,omitempty"`
	TransferredFrom    *string    `json:"transferred_from,omitempty"`
	ServedBy           *string    `json:"served_by,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusCalled    = "called"
	StatusServed    = "served"
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
)

const (
	PriorityNormal    = "normal"
	PriorityEmergency = "emergency"
)

// IsTerminal reports whether no further transition is defined for the status
// within the current department segment. A transfer starts a new segment.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusSkipped
}
