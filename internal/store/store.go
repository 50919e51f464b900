package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
	"github.com/shamadu25/rave-queue-sub001/internal/settings"
)

type CreateEntryInput struct {
	RequestID          string
	FullName           string
	PhoneNumber        string
	Department         string
	IntendedDepartment string
	Priority           string
	CreatedAt          time.Time
}

type TransitionInput struct {
	RequestID  string
	EntryID    string
	Action     string
	ActorID    string
	OccurredAt time.Time
}

type CallNextInput struct {
	RequestID  string
	Department string
	ActorID    string
	CalledAt   time.Time
}

type TransferInput struct {
	RequestID    string
	EntryID      string
	ToDepartment string
	ActorID      string
	Reason       string
	OccurredAt   time.Time
}

type FlowTransferInput struct {
	RequestID  string
	EntryID    string
	FlowID     string
	ActorID    string
	OccurredAt time.Time
}

type ListFilter struct {
	Department string
	Status     string
}

type EntryStore interface {
	CreateEntry(ctx context.Context, input CreateEntryInput) (models.QueueEntry, error)
	GetEntry(ctx context.Context, entryID string) (models.QueueEntry, bool, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]models.QueueEntry, error)
	Transition(ctx context.Context, input TransitionInput) (models.QueueEntry, error)
	CallNext(ctx context.Context, input CallNextInput) (models.QueueEntry, error)
	Transfer(ctx context.Context, input TransferInput) (models.QueueEntry, error)
	FlowTransfer(ctx context.Context, input FlowTransferInput) (models.QueueEntry, error)
	DeleteEntry(ctx context.Context, entryID string) error
	ListDepartments(ctx context.Context, includeInternal bool) ([]models.Department, error)
	ListServiceFlows(ctx context.Context) ([]models.ServiceFlow, error)
	ListTransfers(ctx context.Context, entryID string) ([]models.TransferRecord, error)
	ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]OutboxEvent, error)
	GetOffset(ctx context.Context, consumer string) (Offset, error)
	UpdateOffset(ctx context.Context, consumer string, offset Offset) error
	LoadSettings(ctx context.Context) (settings.Settings, error)
	GetSession(ctx context.Context, sessionID string) (Session, error)
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
}

type Session struct {
	SessionID string
	UserID    string
	ExpiresAt time.Time
}

type OutboxEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type Offset struct {
	LastEventTime time.Time
	LastEventID   string
}
