package transcripts

import (
	"sync"

	"github.com/davit-gh/speech2text-bot/internal/domain"
)

// Latest keeps the most recent transcript per chat, so translation taps
// always act on something even after the originating message scrolled
// away. Two sessions finishing back-to-back for the same chat race
// last-write-wins: a translation tap may then act on the newer
// transcript. Known limitation, kept as-is.
type Latest struct {
	mu     sync.RWMutex
	byChat map[int64]*entry
}

type entry struct {
	transcript   domain.Transcript
	translations map[string]string
}

// NewLatest returns an empty registry.
func NewLatest() *Latest {
	return &Latest{byChat: make(map[int64]*entry)}
}

// Put replaces the chat's transcript and drops any cached translations
// of the superseded one.
func (l *Latest) Put(chatID int64, t domain.Transcript) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byChat[chatID] = &entry{
		transcript:   t,
		translations: make(map[string]string),
	}
}

// Get returns a copy of the chat's current transcript.
func (l *Latest) Get(chatID int64) (domain.Transcript, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.byChat[chatID]
	if !ok {
		return domain.Transcript{}, false
	}
	return e.transcript, true
}

// CacheTranslation stores a finished translation of the chat's current
// transcript. A no-op when the transcript has already been superseded.
func (l *Latest) CacheTranslation(chatID int64, langCode, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.byChat[chatID]; ok {
		e.translations[langCode] = text
	}
}

// CachedTranslation returns a previously stored translation.
func (l *Latest) CachedTranslation(chatID int64, langCode string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.byChat[chatID]
	if !ok {
		return "", false
	}
	text, ok := e.translations[langCode]
	return text, ok
}
