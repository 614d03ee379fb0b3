package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ge-labs/dink-server/internal/models"
)

// MemoryStore is an in-memory EventStore used by tests and local development.
// Events are held newest-first so queries read in order without re-sorting.
type MemoryStore struct {
	mu     sync.RWMutex
	events []models.Event
	seq    int64
}

// Compile-time interface check.
var _ EventStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert implements EventStore.
func (s *MemoryStore) Insert(ctx context.Context, ev *models.Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	if ev.ID == "" {
		ev.ID = fmt.Sprintf("mem-%08d", s.seq)
	}

	// Newest first. Insertion order breaks ReceivedAt ties, so a new event
	// lands before any existing event with the same timestamp.
	idx := len(s.events)
	for i, existing := range s.events {
		if !existing.ReceivedAt.After(ev.ReceivedAt) {
			idx = i
			break
		}
	}

	s.events = append(s.events, models.Event{})
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = *ev

	return ev.ID, nil
}

// Query implements EventStore.
func (s *MemoryStore) Query(ctx context.Context, f Filter, skip, limit int) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.matching(f)
	if skip >= len(matched) {
		return []models.Event{}, nil
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	out := make([]models.Event, len(matched))
	copy(out, matched)
	return out, nil
}

// Count implements EventStore.
func (s *MemoryStore) Count(ctx context.Context, f Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matching(f))), nil
}

// Ping implements EventStore.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Close implements EventStore.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// matching returns the filtered view, newest first. Caller holds the lock.
func (s *MemoryStore) matching(f Filter) []models.Event {
	matched := make([]models.Event, 0, len(s.events))
	for _, ev := range s.events {
		if f.Token != "" && ev.Token != f.Token {
			continue
		}
		if f.EventType != "" && ev.EventType != f.EventType {
			continue
		}
		if f.Since != nil && ev.ReceivedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && ev.ReceivedAt.After(*f.Until) {
			continue
		}
		matched = append(matched, ev)
	}
	return matched
}
