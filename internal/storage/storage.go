// Package storage provides the persisted event store. Events are pure-insert:
// the store exposes no update or delete operations.
package storage

import (
	"context"
	"time"

	"github.com/ge-labs/dink-server/internal/models"
)

// Filter selects events. All set fields are combined conjunctively; the time
// bounds are inclusive over the event's ReceivedAt.
type Filter struct {
	Token     string
	EventType string
	Since     *time.Time
	Until     *time.Time
}

// EventStore is the append/query interface over persisted event records.
// Implementations must be safe for concurrent use and must return query
// results ordered by ReceivedAt descending, ties broken by insertion order
// newest first.
type EventStore interface {
	// Insert persists the event and returns its store-assigned ID.
	Insert(ctx context.Context, ev *models.Event) (string, error)

	// Query returns a page of matching events.
	Query(ctx context.Context, f Filter, skip, limit int) ([]models.Event, error)

	// Count returns the number of matching events, ignoring pagination.
	Count(ctx context.Context, f Filter) (int64, error)

	// Ping checks store connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
