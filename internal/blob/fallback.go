package blob

import (
	"context"
	"log/slog"

	"github.com/ge-labs/dink-server/internal/metrics"
)

// FallbackStore tries a primary store and degrades to a secondary store per
// object. A remote outage must never fail an ingestion request, so a failed
// remote put falls back to local disk for that single attachment.
type FallbackStore struct {
	primary   Store
	secondary Store
}

// NewFallbackStore wraps primary with a per-object fallback to secondary.
func NewFallbackStore(primary, secondary Store) *FallbackStore {
	return &FallbackStore{primary: primary, secondary: secondary}
}

// Name implements Store; the composite reports the primary backend.
func (s *FallbackStore) Name() string { return s.primary.Name() }

// Put implements Store.
func (s *FallbackStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	ref, err := s.primary.Put(ctx, key, data)
	if err == nil {
		return ref, nil
	}

	metrics.AttachmentErrors.Inc()
	slog.Warn("attachment relocation failed, falling back",
		slog.String("backend", s.primary.Name()),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)

	return s.secondary.Put(ctx, key, data)
}
