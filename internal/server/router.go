package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ge-labs/dink-server/internal/handlers"
	"github.com/ge-labs/dink-server/internal/middleware"
)

// NewRouter constructs a ServeMux with the webhook and read API routes
// registered. uploadDir, when non-empty, is served read-only at /uploads/
// so locally relocated attachments stay dereferenceable.
func NewRouter(h *handlers.Handler, uploadDir string) http.Handler {
	mux := http.NewServeMux()

	// Webhook ingestion
	mux.HandleFunc("/dink/", h.Webhook)

	// Event read APIs
	mux.HandleFunc("/recent.json", h.RecentJSON)
	mux.HandleFunc("/recent", h.RecentHTML)

	// Locally stored attachments
	if uploadDir != "" {
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))
	}

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Liveness/identity descriptor
	mux.HandleFunc("/", h.Root)

	return middleware.RequestID(mux)
}
