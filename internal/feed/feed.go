// Package feed turns the store's outbox into an in-process change feed.
// A single goroutine polls for new events and hands them to handlers one at
// a time in arrival order, so downstream consumers never see interleaving.
package feed

import (
	"context"
	"log"
	"time"

	"github.com/shamadu25/rave-queue-sub001/internal/store"
)

// Handler receives outbox events in order. Handlers must not block.
type Handler func(event store.OutboxEvent)

// EventSource is the slice of the store the poller needs.
type EventSource interface {
	ListOutboxEvents(ctx context.Context, after time.Time, afterID string, limit int) ([]store.OutboxEvent, error)
	GetOffset(ctx context.Context, consumer string) (store.Offset, error)
	UpdateOffset(ctx context.Context, consumer string, offset store.Offset) error
}

type Poller struct {
	store     EventSource
	consumer  string
	interval  time.Duration
	batchSize int
	handlers  []Handler
}

func NewPoller(source EventSource, consumer string, interval time.Duration, batchSize int) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Poller{
		store:     source,
		consumer:  consumer,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Subscribe registers a handler. Must be called before Run.
func (p *Poller) Subscribe(handler Handler) {
	p.handlers = append(p.handlers, handler)
}

// Run polls until ctx is cancelled. The persisted offset makes restarts
// resume where the previous process stopped; a failed offset write means
// events may be re-delivered, which handlers tolerate by being idempotent.
func (p *Poller) Run(ctx context.Context) {
	offset, err := p.store.GetOffset(ctx, p.consumer)
	if err != nil {
		log.Printf("feed load offset error: %v", err)
	}
	if offset.LastEventTime.IsZero() {
		offset.LastEventTime = time.Unix(0, 0).UTC()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		events, err := p.store.ListOutboxEvents(ctx, offset.LastEventTime, offset.LastEventID, p.batchSize)
		if err != nil {
			log.Printf("feed poll error: %v", err)
			continue
		}
		if len(events) == 0 {
			continue
		}
		for _, event := range events {
			p.dispatch(event)
			offset.LastEventTime = event.CreatedAt
			offset.LastEventID = event.EventID
		}
		if err := p.store.UpdateOffset(ctx, p.consumer, offset); err != nil {
			log.Printf("feed offset save error: %v", err)
		}
	}
}

func (p *Poller) dispatch(event store.OutboxEvent) {
	for _, handler := range p.handlers {
		handler(event)
	}
}

// ApplyToCache builds a handler that keeps a cache in sync with entry events.
func ApplyToCache(cache *Cache) Handler {
	return func(event store.OutboxEvent) {
		entry, err := store.DecodeEntryPayload(event.Payload)
		if err != nil {
			log.Printf("feed decode error type=%s: %v", event.Type, err)
			return
		}
		switch event.Type {
		case store.EventEntryCreated:
			cache.Insert(entry)
		case store.EventEntryDeleted:
			cache.Delete(entry.ID)
		default:
			cache.Update(entry)
		}
	}
}
