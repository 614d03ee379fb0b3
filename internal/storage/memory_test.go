package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ge-labs/dink-server/internal/models"
)

func insertAt(t *testing.T, s *MemoryStore, token, typ string, at time.Time) *models.Event {
	t.Helper()
	ev := models.New(token, "", map[string]any{"type": typ}, at)
	_, err := s.Insert(context.Background(), ev)
	require.NoError(t, err)
	return ev
}

func TestMemoryStore_OrderNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)

	// Insert out of chronological order.
	insertAt(t, s, "tok", "b", base.Add(2*time.Second))
	insertAt(t, s, "tok", "a", base)
	insertAt(t, s, "tok", "c", base.Add(4*time.Second))

	events, err := s.Query(context.Background(), Filter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "C", events[0].EventType)
	assert.Equal(t, "B", events[1].EventType)
	assert.Equal(t, "A", events[2].EventType)
}

func TestMemoryStore_TiesBrokenByInsertionNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	at := time.Date(2023, 11, 14, 22, 0, 0, 0, time.UTC)

	first := insertAt(t, s, "tok", "x", at)
	second := insertAt(t, s, "tok", "x", at)

	events, err := s.Query(context.Background(), Filter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, second.ID, events[0].ID, "later insert wins the tie")
	assert.Equal(t, first.ID, events[1].ID)
}

func TestMemoryStore_FilterConjunction(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()

	insertAt(t, s, "tok-a", "push", base)
	insertAt(t, s, "tok-a", "deploy", base.Add(time.Second))
	insertAt(t, s, "tok-b", "push", base.Add(2*time.Second))

	events, err := s.Query(context.Background(), Filter{Token: "tok-a", EventType: "PUSH"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "tok-a", events[0].Token)
	assert.Equal(t, "PUSH", events[0].EventType)
}

func TestMemoryStore_TokenCaseSensitive(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()

	insertAt(t, s, "Token", "x", base)

	events, err := s.Query(context.Background(), Filter{Token: "token"}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryStore_TimeWindowInclusive(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 5; i++ {
		insertAt(t, s, "tok", "x", base.Add(time.Duration(i)*time.Second))
	}

	since := base.Add(1 * time.Second)
	until := base.Add(3 * time.Second)
	events, err := s.Query(context.Background(), Filter{Since: &since, Until: &until}, 0, 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	n, err := s.Count(context.Background(), Filter{Since: &since, Until: &until})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestMemoryStore_SkipLimit(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 5; i++ {
		insertAt(t, s, "tok", "x", base.Add(time.Duration(i)*time.Second))
	}

	events, err := s.Query(context.Background(), Filter{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Skip past the end yields an empty page, not an error.
	events, err = s.Query(context.Background(), Filter{}, 100, 2)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryStore_CountIgnoresPagination(t *testing.T) {
	s := NewMemoryStore()
	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 7; i++ {
		insertAt(t, s, "tok", "x", base.Add(time.Duration(i)*time.Second))
	}

	n, err := s.Count(context.Background(), Filter{Token: "tok"})
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
}
