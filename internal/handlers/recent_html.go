package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/ge-labs/dink-server/internal/logging"
	"github.com/ge-labs/dink-server/internal/service"
)

// recentTemplate renders the debug table. This view is for humans poking at
// a deployment; it is not part of the programmatic contract.
var recentTemplate = template.Must(template.New("recent").Parse(`<!DOCTYPE html>
<html>
<head>
<title>dink-server: recent events</title>
<style>
body { font-family: monospace; margin: 1em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
th { background: #eee; }
pre { margin: 0; white-space: pre-wrap; word-break: break-all; }
</style>
</head>
<body>
<h1>Recent events{{if .Token}} for token {{.Token}}{{end}}</h1>
<p>{{len .Events}} of {{.Total}} matching events (newest first)</p>
<table>
<tr><th>time</th><th>token</th><th>type</th><th>ip</th><th>payload</th></tr>
{{range .Events}}<tr>
<td>{{.Time}}</td>
<td>{{.Token}}</td>
<td>{{.EventType}}</td>
<td>{{.IP}}</td>
<td><pre>{{.PayloadJSON}}</pre></td>
</tr>
{{end}}</table>
</body>
</html>
`))

type recentRow struct {
	Time        string
	Token       string
	EventType   string
	IP          string
	PayloadJSON string
}

type recentView struct {
	Token  string
	Total  int64
	Events []recentRow
}

// RecentHTML handles GET /recent: an HTML debug rendering of up to the
// newest 200 matching records.
func (h *Handler) RecentHTML(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	page, err := h.query.Query(r.Context(), service.QueryParams{
		Token: token,
		Limit: htmlEventCap,
	})
	if err != nil {
		h.log.ErrorContext(r.Context(), "event query failed", logging.Error(err))
		httpError(w, http.StatusInternalServerError)
		return
	}

	view := recentView{
		Token:  token,
		Total:  page.Total,
		Events: make([]recentRow, 0, len(page.Events)),
	}
	for _, ev := range page.Events {
		view.Events = append(view.Events, recentRow{
			Time:        ev.Time,
			Token:       ev.Token,
			EventType:   ev.EventType,
			IP:          ev.IP,
			PayloadJSON: marshalIndent(ev.Payload),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := recentTemplate.Execute(w, view); err != nil {
		h.log.ErrorContext(r.Context(), "template render failed", logging.Error(err))
	}
}

func marshalIndent(payload map[string]any) string {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func httpError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
