package models

import (
	"strings"
	"time"
)

// Event is the canonical persisted record for one ingested webhook payload.
// Records are pure-insert: once stored they are never updated or deleted.
type Event struct {
	// ID is assigned by the store at insert time (Mongo ObjectID hex).
	ID string `bson:"_id,omitempty" json:"id"`

	// Token is the caller-supplied partition key from the URL path.
	// It is not validated or authenticated; matching is case-sensitive.
	Token string `bson:"token" json:"token"`

	// ReceivedAt is the server-assigned ingestion instant (UTC). It is the
	// canonical timestamp for ordering and time-range queries.
	ReceivedAt time.Time `bson:"received_at" json:"-"`

	// Time is the RFC3339 rendering of ReceivedAt, retained for callers that
	// predate the typed timestamp.
	Time string `bson:"time" json:"time"`

	// IP is the caller's network address, best effort.
	IP string `bson:"ip,omitempty" json:"ip,omitempty"`

	// EventType is the upper-cased top-level "type" field of the payload,
	// or "" when the payload carries none.
	EventType string `bson:"event_type" json:"eventType"`

	// Payload is the normalized body content. Never nil; an empty map is
	// stored when the body could not be decoded by any strategy.
	Payload map[string]any `bson:"payload" json:"payload"`
}

// New builds an Event with the server-assigned timestamp fields populated.
func New(token, ip string, payload map[string]any, receivedAt time.Time) *Event {
	if payload == nil {
		payload = map[string]any{}
	}
	receivedAt = receivedAt.UTC()
	return &Event{
		Token:      token,
		ReceivedAt: receivedAt,
		Time:       receivedAt.Format(time.RFC3339Nano),
		IP:         ip,
		EventType:  DeriveType(payload),
		Payload:    payload,
	}
}

// DeriveType extracts the event type from a payload's top-level "type"
// field. Only a string value counts; nested structures are not inspected.
func DeriveType(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload["type"].(string); ok {
		return strings.ToUpper(v)
	}
	return ""
}
