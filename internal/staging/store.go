package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store manages a scratch directory of transiently staged files. Callers
// own the lifecycle of every path they allocate and must Release each one;
// the store itself keeps no usage counts.
type Store struct {
	root string
	log  *logrus.Entry
}

// New creates the scratch directory if needed and returns a store over it.
func New(root string, log *logrus.Entry) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch directory %s: %w", root, err)
	}
	return &Store{root: root, log: log}, nil
}

// Root returns the scratch directory path.
func (s *Store) Root() string { return s.root }

// Allocate claims a unique path under the store root derived from hint.
// The hint is used as-is when free (upload unique ids already carry
// enough entropy); on collision the name is retried with a random prefix
// so concurrent sessions never share a path.
func (s *Store) Allocate(hint string) (string, error) {
	name := sanitizeHint(hint)
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			name = uuid.New().String()[:8] + "_" + sanitizeHint(hint)
		}
		path := filepath.Join(s.root, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("allocate staged file: %w", err)
		}
	}
	return "", fmt.Errorf("allocate staged file: could not find a free name for %q", hint)
}

// Release deletes the file at path if present. Idempotent: an already
// missing file is not an error. Failures are logged, never surfaced.
func (s *Store) Release(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.WithError(err).WithField("path", path).Warn("failed to release staged file")
	}
}

// sanitizeHint strips path separators and characters that are unsafe in
// filenames, and bounds the length.
func sanitizeHint(hint string) string {
	name := filepath.Base(strings.TrimSpace(hint))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "file"
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}
