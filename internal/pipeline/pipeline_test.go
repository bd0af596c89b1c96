package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/domain"
	"github.com/davit-gh/speech2text-bot/internal/media"
	"github.com/davit-gh/speech2text-bot/internal/staging"
)

type fakeFetcher struct {
	content string
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, desc domain.InputDescriptor, store *staging.Store) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path, err := store.Allocate(desc.DisplayName())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeNormalizer struct {
	err       error
	lastClass media.Classification
}

func (n *fakeNormalizer) Normalize(ctx context.Context, inputPath string, class media.Classification) (string, error) {
	n.lastClass = class
	if n.err != nil {
		return "", n.err
	}
	out := inputPath + media.CanonicalExt
	if class == media.AlreadyAudio {
		return out, os.Rename(inputPath, out)
	}
	return out, os.WriteFile(out, []byte("wav"), 0o644)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", err
	}
	return t.text, nil
}

type fakeEnricher struct {
	text string
	err  error
}

func (e *fakeEnricher) Enrich(ctx context.Context, raw string) (string, error) {
	return e.text, e.err
}

func newTestStore(t *testing.T) *staging.Store {
	t.Helper()
	store, err := staging.New(t.TempDir(), logrus.NewEntry(logrus.New()))
	if err != nil {
		t.Fatalf("staging.New error = %v", err)
	}
	return store
}

func assertScratchEmpty(t *testing.T, store *staging.Store) {
	t.Helper()
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("ReadDir error = %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("scratch dir not empty after session: %v", names)
	}
}

func TestRunVideoUploadEndToEnd(t *testing.T) {
	store := newTestStore(t)
	norm := &fakeNormalizer{}
	pl := New(store,
		&fakeFetcher{content: "video-bytes"},
		norm,
		&fakeTranscriber{text: "hello world"},
		&fakeEnricher{text: "Hello, world."},
		nil,
		logrus.NewEntry(logrus.New()),
	)

	res, err := pl.Run(context.Background(), Request{
		SessionID: "s1",
		ChatID:    42,
		Input:     domain.UploadRef("fid", "uniq", "lecture.mp4"),
	})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}

	if norm.lastClass != media.NeedsExtraction {
		t.Fatalf("classification = %v, want NeedsExtraction", norm.lastClass)
	}
	if res.Transcript.Raw != "hello world" {
		t.Fatalf("raw transcript = %q", res.Transcript.Raw)
	}
	if res.Transcript.Text() != "Hello, world." {
		t.Fatalf("delivered text = %q, want enriched", res.Transcript.Text())
	}
	assertScratchEmpty(t, store)
}

func TestRunAudioUploadSkipsExtraction(t *testing.T) {
	store := newTestStore(t)
	norm := &fakeNormalizer{}
	pl := New(store,
		&fakeFetcher{content: "ogg-bytes"},
		norm,
		&fakeTranscriber{text: "voice note"},
		nil,
		nil,
		logrus.NewEntry(logrus.New()),
	)

	res, err := pl.Run(context.Background(), Request{
		SessionID: "s2",
		ChatID:    42,
		Input:     domain.UploadRef("fid", "uniq", "voice.ogg"),
	})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if norm.lastClass != media.AlreadyAudio {
		t.Fatalf("classification = %v, want AlreadyAudio", norm.lastClass)
	}
	if res.Transcript.Text() != "voice note" {
		t.Fatalf("delivered text = %q", res.Transcript.Text())
	}
	assertScratchEmpty(t, store)
}

func TestRunFailureAttributesStageAndCleansUp(t *testing.T) {
	cases := []struct {
		name      string
		fetcher   Fetcher
		normErr   error
		transErr  error
		wantStage Stage
	}{
		{
			name:      "acquire",
			fetcher:   &fakeFetcher{err: &domain.TransportError{Op: "download", Err: errors.New("refused")}},
			wantStage: StageAcquiring,
		},
		{
			name:      "normalize",
			fetcher:   &fakeFetcher{content: "bytes"},
			normErr:   &domain.TranscodeError{Detail: "bad container", Err: errors.New("exit 1")},
			wantStage: StageNormalizing,
		},
		{
			name:      "transcribe",
			fetcher:   &fakeFetcher{content: "bytes"},
			transErr:  &domain.ServiceError{Backend: "speech", Err: errors.New("rate limited")},
			wantStage: StageTranscribing,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			pl := New(store,
				tc.fetcher,
				&fakeNormalizer{err: tc.normErr},
				&fakeTranscriber{text: "x", err: tc.transErr},
				nil,
				nil,
				logrus.NewEntry(logrus.New()),
			)

			_, err := pl.Run(context.Background(), Request{
				SessionID: "s3",
				ChatID:    1,
				Input:     domain.UploadRef("fid", "uniq", "clip.mp4"),
			})

			var serr *StageError
			if !errors.As(err, &serr) {
				t.Fatalf("Run error = %v, want StageError", err)
			}
			if serr.Stage != tc.wantStage {
				t.Fatalf("failed stage = %s, want %s", serr.Stage, tc.wantStage)
			}
			assertScratchEmpty(t, store)
		})
	}
}

func TestRunWhitespaceTranscriptReportsNoSpeech(t *testing.T) {
	store := newTestStore(t)
	pl := New(store,
		&fakeFetcher{content: "bytes"},
		&fakeNormalizer{},
		&fakeTranscriber{text: "  \n\t "},
		&fakeEnricher{text: "should not run"},
		nil,
		logrus.NewEntry(logrus.New()),
	)

	res, err := pl.Run(context.Background(), Request{
		SessionID: "s4",
		ChatID:    1,
		Input:     domain.UploadRef("fid", "uniq", "silence.mp4"),
	})
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if !res.NoSpeech {
		t.Fatal("NoSpeech = false, want true for whitespace-only transcript")
	}
	if res.Transcript.Text() != "" {
		t.Fatalf("unexpected transcript text %q", res.Transcript.Text())
	}
	assertScratchEmpty(t, store)
}

func TestRunEnrichmentFailureStillDeliversRawTranscript(t *testing.T) {
	store := newTestStore(t)
	pl := New(store,
		&fakeFetcher{content: "bytes"},
		&fakeNormalizer{},
		&fakeTranscriber{text: "raw words"},
		&fakeEnricher{err: &domain.ServiceError{Backend: "textgen", Err: errors.New("quota")}},
		nil,
		logrus.NewEntry(logrus.New()),
	)

	res, err := pl.Run(context.Background(), Request{
		SessionID: "s5",
		ChatID:    1,
		Input:     domain.UploadRef("fid", "uniq", "talk.mp4"),
	})
	if err != nil {
		t.Fatalf("Run error = %v, enrichment failure must not fail the session", err)
	}
	if res.Transcript.Text() != "raw words" {
		t.Fatalf("delivered text = %q, want raw transcript", res.Transcript.Text())
	}
	assertScratchEmpty(t, store)
}

func TestWorkerPoolDeliversAndNotifiesTerminalStages(t *testing.T) {
	store := newTestStore(t)

	var mu = make(chan Stage, 16)
	observer := func(sessionID string, chatID int64, stage Stage) {
		mu <- stage
	}

	pl := New(store,
		&fakeFetcher{content: "bytes"},
		&fakeNormalizer{},
		&fakeTranscriber{text: "pooled"},
		nil,
		observer,
		logrus.NewEntry(logrus.New()),
	)
	pool := NewWorkerPool(2, pl, observer, logrus.NewEntry(logrus.New()))
	pool.Start()

	done := make(chan *Result, 1)
	ok := pool.Enqueue(&Job{
		Request: Request{SessionID: "s6", ChatID: 9, Input: domain.UploadRef("f", "u", "a.mp4")},
		Deliver: func(res *Result, err error) {
			if err != nil {
				t.Errorf("Deliver err = %v", err)
			}
			done <- res
		},
	})
	if !ok {
		t.Fatal("Enqueue returned false on an empty queue")
	}

	select {
	case res := <-done:
		if res.Transcript.Text() != "pooled" {
			t.Fatalf("delivered text = %q", res.Transcript.Text())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job was never delivered")
	}
	pool.Stop()

	close(mu)
	var sawDelivering, sawDone bool
	for stage := range mu {
		if stage == StageDelivering {
			sawDelivering = true
		}
		if stage == StageDone {
			sawDone = true
		}
	}
	if !sawDelivering || !sawDone {
		t.Fatalf("terminal stages missing: delivering=%v done=%v", sawDelivering, sawDone)
	}
}
