package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultFolder groups figure crops when the caller does not care.
const DefaultFolder = "figures"

// Uploader stores immutable artifact blobs (figure renditions, page crops)
// and returns the URI each one is served under. The caller's suggested name
// is advisory; the store guarantees uniqueness itself.
type Uploader interface {
	Upload(data []byte, suggestedName, folder string) (string, error)
}

// LocalStore keeps artifacts in folders under one directory on the local
// filesystem. The HTTP server exposes that directory on a static route, so
// the returned URIs are directly fetchable by API clients.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeName reduces an arbitrary label to a safe filename component.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = unsafeNameRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "blob"
	}
	return name
}

// Upload writes data under a unique name derived from suggestedName and
// returns its serving URI. Distinct uploads never collide, even for
// identical names.
func (s *LocalStore) Upload(data []byte, suggestedName, folder string) (string, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	folder = sanitizeName(folder)
	if err := os.MkdirAll(filepath.Join(s.dir, folder), 0o755); err != nil {
		return "", fmt.Errorf("create blob folder %s: %w", folder, err)
	}
	fname := uuid.New().String()[:8] + "_" + sanitizeName(suggestedName)
	if err := os.WriteFile(filepath.Join(s.dir, folder, fname), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", fname, err)
	}
	return s.baseURL + "/" + folder + "/" + fname, nil
}

// Dir returns the directory artifacts are written to, for mounting as a
// static route.
func (s *LocalStore) Dir() string {
	return s.dir
}
