package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ge-labs/dink-server/internal/httputil"
	"github.com/ge-labs/dink-server/internal/logging"
	"github.com/ge-labs/dink-server/internal/metrics"
	"github.com/ge-labs/dink-server/internal/service"
	"github.com/ge-labs/dink-server/internal/storage"
)

// ServiceName identifies this service in the root descriptor and logs.
const ServiceName = "dink-server"

// htmlEventCap bounds the HTML debug view to the newest matches.
const htmlEventCap = 200

// Handler exposes the webhook ingestion and event read endpoints.
type Handler struct {
	ingest      *service.IngestService
	query       *service.QueryService
	store       storage.EventStore
	storageMode string
	log         *logging.Logger
}

// New creates the HTTP handler set. storageMode names the attachment backend
// ("s3" or "local") for the root descriptor.
func New(ingest *service.IngestService, query *service.QueryService, store storage.EventStore, storageMode string, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.Default()
	}
	return &Handler{
		ingest:      ingest,
		query:       query,
		store:       store,
		storageMode: storageMode,
		log:         log,
	}
}

// Webhook handles POST /dink/{token}. The token is a caller-supplied
// partition key; it is recorded as-is, never validated. The endpoint answers
// {"ok": true} even when the body degraded to an empty document — only a
// store insert failure surfaces as a server error.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := strings.Trim(strings.TrimPrefix(r.URL.Path, "/dink/"), "/")
	if token == "" || strings.Contains(token, "/") {
		httputil.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		// A half-read body still produces an event; extraction degrades to
		// whatever could be decoded.
		h.log.WarnContext(r.Context(), "body read failed", logging.Token(token), logging.Error(err))
	}
	defer r.Body.Close()
	metrics.EventBytesTotal.Add(float64(len(body)))

	ev, err := h.ingest.Ingest(r.Context(), token, r.Header.Get("Content-Type"), httputil.GetClientIP(r), body)
	if err != nil {
		metrics.EventsTotal.WithLabelValues("dink", "error").Inc()
		httputil.WriteError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	metrics.EventsTotal.WithLabelValues("dink", "success").Inc()
	h.log.InfoContext(r.Context(), "event ingested",
		logging.EventID(ev.ID),
		logging.Token(token),
		logging.IP(ev.IP),
	)

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// RecentJSON handles GET /recent.json with filtering and pagination.
func (h *Handler) RecentJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	params := service.QueryParams{
		Token:     q.Get("token"),
		EventType: q.Get("type"),
		Since:     q.Get("since"),
		Until:     q.Get("until"),
		Limit:     httputil.ParseIntParam(q.Get("limit"), service.DefaultLimit),
		Offset:    httputil.ParseIntParam(q.Get("offset"), 0),
	}

	page, err := h.query.Query(r.Context(), params)
	if err != nil {
		h.log.ErrorContext(r.Context(), "event query failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "query failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, page)
}

// Root handles GET / with a liveness/identity descriptor.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.WriteError(w, http.StatusNotFound, "not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": ServiceName,
		"time":    time.Now().UTC().Format(time.RFC3339Nano),
		"storage": h.storageMode,
	})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /readyz; it reports ready only when the event store
// answers a ping.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
