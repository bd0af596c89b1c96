package staging

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically deletes staged files past a maximum age. Sessions
// release their own files on every exit path; the sweeper only catches
// orphans left behind by a crash mid-session.
type Sweeper struct {
	store    *Store
	interval time.Duration
	maxAge   time.Duration
	log      *logrus.Entry
	stop     chan struct{}
}

// NewSweeper builds a sweeper over the store's scratch directory.
func NewSweeper(store *Store, interval, maxAge time.Duration, log *logrus.Entry) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then sweeps on every interval tick
// until Stop is called.
func (s *Sweeper) Start() {
	s.Sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				ticker.Stop()
				return
			}
		}
	}()

	s.log.WithFields(logrus.Fields{
		"interval": s.interval,
		"max_age":  s.maxAge,
	}).Info("scratch sweeper started")
}

// Stop halts periodic sweeping.
func (s *Sweeper) Stop() {
	close(s.stop)
}

// Sweep removes every regular file in the scratch directory older than
// the maximum age. Returns the number of files deleted.
func (s *Sweeper) Sweep() int {
	now := time.Now()
	var deleted int

	entries, err := os.ReadDir(s.store.Root())
	if err != nil {
		s.log.WithError(err).Warn("scratch sweep failed")
		return 0
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			continue
		}
		path := filepath.Join(s.store.Root(), entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("failed to delete orphaned file")
			continue
		}
		deleted++
		s.log.WithFields(logrus.Fields{
			"path": entry.Name(),
			"age":  age.Round(time.Minute),
		}).Info("deleted orphaned staged file")
	}

	return deleted
}
