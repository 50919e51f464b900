package store

import (
	"encoding/json"

	"github.com/shamadu25/rave-queue-sub001/internal/models"
)

const (
	EventEntryCreated     = "entry.created"
	EventEntryCalled      = "entry.called"
	EventEntryServed      = "entry.served"
	EventEntryCompleted   = "entry.completed"
	EventEntrySkipped     = "entry.skipped"
	EventEntryTransferred = "entry.transferred"
	EventEntryDeleted     = "entry.deleted"
)

// EventForAction maps a transition action to its outbox event type.
func EventForAction(action string) string {
	switch action {
	case "call":
		return EventEntryCalled
	case "serve":
		return EventEntryServed
	case "complete":
		return EventEntryCompleted
	case "skip":
		return EventEntrySkipped
	default:
		return ""
	}
}

func EncodeEntryPayload(entry models.QueueEntry) (json.RawMessage, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func DecodeEntryPayload(payload json.RawMessage) (models.QueueEntry, error) {
	var entry models.QueueEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}
