package models

import "time"

// Department is keyed by name throughout the queue logic. Flows and access
// rules are authored against department names, not surrogate ids.
type Department struct {
	Name       string `json:"name"`
	ColorCode  string `json:"color_code,omitempty"`
	Prefix     string `json:"prefix"`
	IsInternal bool   `json:"is_internal"`
	IsActive   bool   `json:"is_active"`
}

type ServiceFlow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Departments []string `json:"departments"`
	IsActive    bool     `json:"is_active"`
}

type TransferRecord struct {
	ID             string    `json:"id"`
	EntryID        string    `json:"entry_id"`
	FromDepartment string    `json:"from_department"`
	ToDepartment   string    `json:"to_department"`
	TransferredBy  string    `json:"transferred_by"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Profile struct {
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)
