package staging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetOutput(os.Stderr)
	store, err := New(t.TempDir(), logrus.NewEntry(log))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func TestAllocateSameHintYieldsDistinctPaths(t *testing.T) {
	store := testStore(t)

	first, err := store.Allocate("remote_file")
	if err != nil {
		t.Fatalf("first Allocate error = %v", err)
	}
	second, err := store.Allocate("remote_file")
	if err != nil {
		t.Fatalf("second Allocate error = %v", err)
	}
	if first == second {
		t.Fatalf("Allocate returned the same path twice: %s", first)
	}
	if filepath.Base(first) != "remote_file" {
		t.Fatalf("first path = %q, want base remote_file", first)
	}
}

func TestAllocateSanitizesHint(t *testing.T) {
	store := testStore(t)

	path, err := store.Allocate("../../etc/pass:wd")
	if err != nil {
		t.Fatalf("Allocate error = %v", err)
	}
	if filepath.Dir(path) != store.Root() {
		t.Fatalf("allocated outside store root: %s", path)
	}
	if base := filepath.Base(path); base != "pass_wd" {
		t.Fatalf("base = %q, want pass_wd", base)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	store := testStore(t)

	path, err := store.Allocate("voice.ogg")
	if err != nil {
		t.Fatalf("Allocate error = %v", err)
	}

	store.Release(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present after Release, stat err = %v", err)
	}

	// Second release of the same path must be a no-op.
	store.Release(path)
	store.Release("")
}

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	store := testStore(t)
	log := logrus.NewEntry(logrus.New())

	oldPath, err := store.Allocate("stale.mp4")
	if err != nil {
		t.Fatalf("Allocate error = %v", err)
	}
	freshPath, err := store.Allocate("fresh.ogg")
	if err != nil {
		t.Fatalf("Allocate error = %v", err)
	}

	past := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("Chtimes error = %v", err)
	}

	sweeper := NewSweeper(store, time.Hour, 2*time.Hour, log)
	if deleted := sweeper.Sweep(); deleted != 1 {
		t.Fatalf("Sweep deleted %d files, want 1", deleted)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("stale file survived sweep")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Fatalf("fresh file removed by sweep: %v", err)
	}
}
