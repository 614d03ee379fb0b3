package service

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ge-labs/dink-server/internal/blob"
	"github.com/ge-labs/dink-server/internal/extractor"
	"github.com/ge-labs/dink-server/internal/models"
	"github.com/ge-labs/dink-server/internal/storage"
)

const testBaseURL = "http://localhost:8000"

func newTestIngest(t *testing.T) (*IngestService, *storage.MemoryStore) {
	t.Helper()
	local, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	ex := extractor.New(local, nil)
	return NewIngestService(store, ex, testBaseURL, nil), store
}

func TestIngest_JSONBody(t *testing.T) {
	svc, store := newTestIngest(t)

	ev, err := svc.Ingest(context.Background(), "tok-1", "application/json", "203.0.113.7",
		[]byte(`{"type":"deploy","env":"prod"}`))
	require.NoError(t, err)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "tok-1", ev.Token)
	assert.Equal(t, "DEPLOY", ev.EventType)
	assert.Equal(t, "203.0.113.7", ev.IP)
	assert.Equal(t, "prod", ev.Payload["env"])
	assert.False(t, ev.ReceivedAt.IsZero())
	assert.Equal(t, ev.ReceivedAt.Format(time.RFC3339Nano), ev.Time)

	n, err := store.Count(context.Background(), storage.Filter{Token: "tok-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestIngest_MalformedBodyStoresEmptyPayload(t *testing.T) {
	svc, _ := newTestIngest(t)

	ev, err := svc.Ingest(context.Background(), "tok", "application/json", "", []byte("not json"))
	require.NoError(t, err, "a malformed body must still produce a stored event")

	assert.NotNil(t, ev.Payload)
	assert.Empty(t, ev.Payload)
	assert.Equal(t, "", ev.EventType)
}

func TestIngest_MultipartRewritesAttachmentReference(t *testing.T) {
	svc, store := newTestIngest(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("payload_json",
		`{"type":"screenshot","embeds":[{"image":{"url":"attachment://shot.png"}}],"screenshot_url":"attachment://missing.png"}`))
	fw, err := w.CreateFormFile("file", "shot.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	ev, err := svc.Ingest(context.Background(), "tok", w.FormDataContentType(), "", buf.Bytes())
	require.NoError(t, err)

	embeds := ev.Payload["embeds"].([]any)
	url := embeds[0].(map[string]any)["image"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, testBaseURL+"/uploads/tok/"), "got %q", url)
	assert.True(t, strings.HasSuffix(url, "-shot.png"))

	// A reference with no matching uploaded file stays symbolic.
	assert.Equal(t, "attachment://missing.png", ev.Payload["screenshot_url"])

	// The stored record carries the rewritten payload.
	events, err := store.Query(context.Background(), storage.Filter{Token: "tok"}, 0, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ev.Payload["embeds"], events[0].Payload["embeds"])
}

type failingStore struct {
	storage.EventStore
}

func (f *failingStore) Insert(ctx context.Context, ev *models.Event) (string, error) {
	return "", errors.New("store down")
}

func TestIngest_InsertFailurePropagates(t *testing.T) {
	local, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	svc := NewIngestService(&failingStore{storage.NewMemoryStore()}, extractor.New(local, nil), testBaseURL, nil)

	_, err = svc.Ingest(context.Background(), "tok", "application/json", "", []byte(`{}`))
	require.Error(t, err, "a lost event must surface as a fatal ingestion failure")
}
