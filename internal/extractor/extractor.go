// Package extractor normalizes webhook request bodies into canonical
// key-value documents. Bodies arrive as JSON, form-urlencoded, or multipart
// form data; decoding runs as an ordered strategy chain that short-circuits
// on the first success and ends in a terminal strategy that always succeeds,
// so extraction can never fail a request.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ge-labs/dink-server/internal/blob"
	"github.com/ge-labs/dink-server/internal/metrics"
)

// payloadFields are checked in order inside form and multipart bodies for a
// stringified JSON document.
var payloadFields = [2]string{"payload_json", "payload"}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Result is the outcome of extracting one request body.
type Result struct {
	// Document is the canonical payload. Never nil; empty when no strategy
	// could decode the body.
	Document map[string]any

	// Attachments maps each uploaded file's lower-cased original filename to
	// its relocated reference (absolute URL or relative upload key). When the
	// same filename appears in multiple file parts, the last one wins.
	Attachments map[string]string
}

// Extractor turns (contentType, body) pairs into canonical documents,
// relocating multipart file parts through the blob store as a side effect.
type Extractor struct {
	blobs blob.Store
	log   *slog.Logger
}

// New creates an Extractor that relocates file parts into blobs.
func New(blobs blob.Store, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{blobs: blobs, log: log}
}

// strategy attempts one decoding of the body. ok reports whether the
// strategy accepted the body; the chain falls through on !ok.
type strategy func(ctx context.Context, token, mediaType string, params map[string]string, body []byte) (Result, bool)

// Extract decodes body according to contentType. It never fails: malformed
// input degrades to a partial or empty document.
func (e *Extractor) Extract(ctx context.Context, token, contentType string, body []byte) Result {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	chain := []strategy{
		e.decodeJSON,
		e.decodeForm,
		e.decodeMultipart,
		e.decodeTerminal,
	}

	for _, s := range chain {
		if res, ok := s(ctx, token, mediaType, params, body); ok {
			return res
		}
	}

	// Unreachable: the terminal strategy always succeeds.
	return Result{Document: map[string]any{}}
}

// decodeJSON handles application/json bodies. A body that does not decode to
// a JSON object falls through rather than failing the request.
func (e *Extractor) decodeJSON(_ context.Context, _, mediaType string, _ map[string]string, body []byte) (Result, bool) {
	if !strings.Contains(mediaType, "application/json") {
		return Result{}, false
	}

	doc, ok := tryJSONObject(body)
	if !ok {
		return Result{}, false
	}
	return Result{Document: doc}, true
}

// decodeForm handles application/x-www-form-urlencoded bodies. The first
// value wins on duplicate keys. A payload_json/payload field that decodes to
// a JSON object becomes the document; otherwise the raw field mapping is
// returned so the request is never silently dropped.
func (e *Extractor) decodeForm(_ context.Context, _, mediaType string, _ map[string]string, body []byte) (Result, bool) {
	if !strings.Contains(mediaType, "application/x-www-form-urlencoded") {
		return Result{}, false
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Result{}, false
	}

	fields := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			fields[k] = vs[0]
		} else {
			fields[k] = ""
		}
	}

	return Result{Document: resolveFields(fields)}, true
}

// decodeMultipart handles multipart/form-data bodies. Value fields resolve
// like form bodies; each file part is relocated through the blob store and
// recorded under its lower-cased original filename.
func (e *Extractor) decodeMultipart(ctx context.Context, token, mediaType string, params map[string]string, body []byte) (Result, bool) {
	if !strings.Contains(mediaType, "multipart/form-data") {
		return Result{}, false
	}
	boundary := params["boundary"]
	if boundary == "" {
		return Result{}, false
	}

	mr := multipart.NewReader(bytes.NewReader(body), boundary)

	fields := map[string]string{}
	attachments := map[string]string{}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Truncated or malformed multipart stream: keep whatever was
			// decoded so far instead of rejecting the request.
			break
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			break
		}

		if filename := part.FileName(); filename != "" {
			ref, err := e.relocate(ctx, token, filename, data)
			if err != nil {
				e.log.Warn("attachment relocation failed, reference left unresolved",
					slog.String("filename", filename),
					slog.String("error", err.Error()),
				)
				continue
			}
			attachments[strings.ToLower(filename)] = ref
			continue
		}

		// First value wins on duplicate field names.
		name := part.FormName()
		if _, seen := fields[name]; !seen {
			fields[name] = string(data)
		}
	}

	return Result{Document: resolveFields(fields), Attachments: attachments}, true
}

// decodeTerminal attempts a raw JSON decode of the whole body regardless of
// content type and otherwise yields an empty document. It always succeeds.
func (e *Extractor) decodeTerminal(_ context.Context, _, _ string, _ map[string]string, body []byte) (Result, bool) {
	metrics.ExtractFallbacks.Inc()
	if doc, ok := tryJSONObject(body); ok {
		return Result{Document: doc}, true
	}
	return Result{Document: map[string]any{}}, true
}

// relocate writes one file part's bytes to the blob store under a key
// namespaced by token, millisecond timestamp, and a random suffix.
func (e *Extractor) relocate(ctx context.Context, token, filename string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%d-%s-%s",
		token,
		time.Now().UnixMilli(),
		uuid.New().String()[:8],
		SanitizeFilename(filename),
	)
	return e.blobs.Put(ctx, key, data)
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with an
// underscore. An empty result defaults to upload.bin.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" {
		return "upload.bin"
	}
	return name
}

// resolveFields applies the payload_json/payload convention: the first such
// field that decodes to a JSON object is the document; otherwise the raw
// field mapping is.
func resolveFields(fields map[string]string) map[string]any {
	for _, key := range payloadFields {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if doc, ok := tryJSONObject([]byte(raw)); ok {
			return doc
		}
	}

	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	return doc
}

// tryJSONObject decodes data as JSON and reports whether it is an object.
func tryJSONObject(data []byte) (map[string]any, bool) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, false
	}
	return doc, true
}
