package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ge-labs/dink-server/internal/extractor"
	"github.com/ge-labs/dink-server/internal/logging"
	"github.com/ge-labs/dink-server/internal/models"
	"github.com/ge-labs/dink-server/internal/rewrite"
	"github.com/ge-labs/dink-server/internal/storage"
)

// IngestService runs the ingestion pipeline: body extraction, attachment URI
// rewriting, and persistence. Parsing and relocation failures are absorbed
// into degraded documents; only a store insert failure propagates, since
// without persistence the event is lost.
type IngestService struct {
	store     storage.EventStore
	extractor *extractor.Extractor
	baseURL   string
	log       *logging.Logger
}

// NewIngestService wires the pipeline. baseURL is used to compose /uploads/
// links for locally stored attachments.
func NewIngestService(store storage.EventStore, ex *extractor.Extractor, baseURL string, log *logging.Logger) *IngestService {
	if log == nil {
		log = logging.Default()
	}
	return &IngestService{store: store, extractor: ex, baseURL: baseURL, log: log}
}

// Ingest normalizes one webhook body and persists the resulting event.
func (s *IngestService) Ingest(ctx context.Context, token, contentType, remoteAddr string, body []byte) (*models.Event, error) {
	res := s.extractor.Extract(ctx, token, contentType, body)

	doc := res.Document
	if len(res.Attachments) > 0 {
		doc = rewrite.Attachments(doc, res.Attachments, s.baseURL)
	}

	ev := models.New(token, remoteAddr, doc, time.Now())

	id, err := s.store.Insert(ctx, ev)
	if err != nil {
		s.log.ErrorContext(ctx, "event insert failed", logging.Token(token), logging.Error(err))
		return nil, err
	}
	ev.ID = id

	s.log.DebugContext(ctx, "event stored",
		logging.EventID(id),
		logging.Token(token),
		slog.String("event_type", ev.EventType),
		slog.Int("attachments", len(res.Attachments)),
	)

	return ev, nil
}
