package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ge-labs/dink-server/internal/models"
	"github.com/ge-labs/dink-server/internal/storage"
)

// Pagination bounds. Out-of-range inputs are silently clamped, never
// rejected.
const (
	MinLimit     = 1
	MaxLimit     = 10000
	DefaultLimit = 50
)

// QueryParams carries raw, unvalidated query inputs. Since and Until accept
// Unix-seconds integer strings or ISO-8601 timestamps; unparseable values
// mean "no bound".
type QueryParams struct {
	Token     string
	EventType string
	Since     string
	Until     string
	Limit     int
	Offset    int
}

// Page is the stable paged result shape. NextOffset is set only when more
// matching records exist past this page; clients must honor it rather than
// inferring "more data" from page length.
type Page struct {
	Total      int64          `json:"total"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
	NextOffset *int           `json:"next_offset"`
	Events     []models.Event `json:"events"`
}

// QueryService translates inbound filter/pagination parameters into store
// queries and shapes the paged result.
type QueryService struct {
	store storage.EventStore
}

// NewQueryService creates a QueryService over store.
func NewQueryService(store storage.EventStore) *QueryService {
	return &QueryService{store: store}
}

// Query executes one paged, filtered read. The filter is a conjunction of
// token exact-match, upper-cased event type exact-match, and an inclusive
// [since, until] window over ReceivedAt. Order is ReceivedAt descending,
// ties newest-inserted first.
func (s *QueryService) Query(ctx context.Context, p QueryParams) (*Page, error) {
	limit := clampLimit(p.Limit)
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	f := storage.Filter{
		Token:     p.Token,
		EventType: strings.ToUpper(p.EventType),
		Since:     ParseTimeBound(p.Since),
		Until:     ParseTimeBound(p.Until),
	}

	total, err := s.store.Count(ctx, f)
	if err != nil {
		return nil, err
	}

	events, err := s.store.Query(ctx, f, offset, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.Event{}
	}

	page := &Page{
		Total:  total,
		Limit:  limit,
		Offset: offset,
		Events: events,
	}
	if next := offset + len(events); int64(next) < total {
		page.NextOffset = &next
	}

	return page, nil
}

func clampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// isoLayouts are tried in order for non-integer time bounds. Layouts without
// an explicit offset are interpreted as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimeBound parses one since/until value. Integer strings are Unix
// seconds (UTC); anything else is tried as ISO-8601, with a trailing Z
// treated as +00:00 and missing offsets assumed UTC. Unparseable values
// return nil, meaning no filtering on that bound.
func ParseTimeBound(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(secs, 0).UTC()
		return &t
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}

	return nil
}
