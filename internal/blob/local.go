package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ge-labs/dink-server/internal/metrics"
)

// LocalStore writes attachments under a directory on local disk. The
// returned reference is the key itself, relative to the directory; the HTTP
// layer serves it at /uploads/<key>.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a LocalStore rooted at dir, creating it if needed.
// When dir is not writable it falls back to a subdirectory of the system
// temp directory so attachment relocation keeps working.
func NewLocalStore(dir string) (*LocalStore, error) {
	if !writable(dir) {
		fallback := filepath.Join(os.TempDir(), "dink-uploads")
		if !writable(fallback) {
			return nil, fmt.Errorf("blob: upload dir %q not writable and temp fallback failed", dir)
		}
		dir = fallback
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the directory attachments are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Name implements Store.
func (s *LocalStore) Name() string { return "local" }

// Put implements Store. Keys may contain forward slashes; the directory
// structure is created as needed. Path traversal segments are rejected.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || strings.HasPrefix(path.Clean(key), "..") {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir for %q: %w", key, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("blob: write %q: %w", key, err)
	}

	metrics.AttachmentsTotal.WithLabelValues(s.Name()).Inc()
	return clean, nil
}

func writable(dir string) bool {
	if dir == "" {
		return false
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	probe.Close()
	os.Remove(probe.Name())
	return true
}
