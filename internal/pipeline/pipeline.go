package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/domain"
	"github.com/davit-gh/speech2text-bot/internal/media"
	"github.com/davit-gh/speech2text-bot/internal/staging"
)

// Stage names one step of a processing session.
type Stage string

const (
	StageAcquiring    Stage = "acquiring"
	StageClassifying  Stage = "classifying"
	StageNormalizing  Stage = "normalizing"
	StageTranscribing Stage = "transcribing"
	StageEnriching    Stage = "enriching"
	StageDelivering   Stage = "delivering"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// StageError attributes a failure to the stage that produced it. Stages
// are never retried; the first failure terminates the session.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fetcher stages an input descriptor's bytes.
type Fetcher interface {
	Fetch(ctx context.Context, desc domain.InputDescriptor, store *staging.Store) (string, error)
}

// Normalizer produces the canonical audio artifact.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath string, class media.Classification) (string, error)
}

// Transcriber is the speech-recognition boundary.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Enricher reformats transcribed text.
type Enricher interface {
	Enrich(ctx context.Context, raw string) (string, error)
}

// Observer is notified of every stage transition.
type Observer func(sessionID string, chatID int64, stage Stage)

// Request describes one unit of work.
type Request struct {
	SessionID string
	ChatID    int64
	Input     domain.InputDescriptor
}

// Result is a session's terminal state after a successful run.
type Result struct {
	SessionID  string
	ChatID     int64
	Transcript domain.Transcript
	NoSpeech   bool
	Elapsed    time.Duration
}

// Pipeline composes acquisition, classification, normalization,
// transcription and enrichment into one unit of work per request, and
// owns the staged-file lifecycle end to end.
type Pipeline struct {
	store       *staging.Store
	fetcher     Fetcher
	normalizer  Normalizer
	transcriber Transcriber
	enricher    Enricher
	observer    Observer
	log         *logrus.Entry
}

// New wires the pipeline. enricher and observer may be nil.
func New(
	store *staging.Store,
	fetcher Fetcher,
	normalizer Normalizer,
	transcriber Transcriber,
	enricher Enricher,
	observer Observer,
	log *logrus.Entry,
) *Pipeline {
	return &Pipeline{
		store:       store,
		fetcher:     fetcher,
		normalizer:  normalizer,
		transcriber: transcriber,
		enricher:    enricher,
		observer:    observer,
		log:         log,
	}
}

// Run executes one session. Every staged file created along the way is
// released before Run returns, whichever stage failed. Errors come back
// as *StageError wrapping the originating stage's error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := p.log.WithFields(logrus.Fields{
		"session": req.SessionID,
		"chat_id": req.ChatID,
		"source":  req.Input.Kind,
	})

	var staged []string
	defer func() {
		for _, path := range staged {
			p.store.Release(path)
		}
	}()

	p.enter(req, StageAcquiring, log)
	srcPath, err := p.fetcher.Fetch(ctx, req.Input, p.store)
	if srcPath != "" {
		staged = append(staged, srcPath)
	}
	if err != nil {
		return nil, &StageError{Stage: StageAcquiring, Err: err}
	}

	p.enter(req, StageClassifying, log)
	class := media.Classify(req.Input.DisplayName())
	log.WithField("classification", class.String()).Debug("input classified")

	p.enter(req, StageNormalizing, log)
	artifact, err := p.normalizer.Normalize(ctx, srcPath, class)
	if artifact != "" {
		staged = append(staged, artifact)
	}
	if err != nil {
		return nil, &StageError{Stage: StageNormalizing, Err: err}
	}

	p.enter(req, StageTranscribing, log)
	raw, err := p.transcriber.Transcribe(ctx, artifact)
	if err != nil {
		return nil, &StageError{Stage: StageTranscribing, Err: err}
	}

	res := &Result{
		SessionID: req.SessionID,
		ChatID:    req.ChatID,
	}

	if strings.TrimSpace(raw) == "" {
		res.NoSpeech = true
		res.Elapsed = time.Since(start)
		log.Info("no speech detected")
		return res, nil
	}

	res.Transcript = domain.Transcript{Raw: raw}

	if p.enricher != nil {
		p.enter(req, StageEnriching, log)
		formatted, err := p.enricher.Enrich(ctx, raw)
		if err != nil {
			// The raw transcript is already in hand; deliver it instead
			// of discarding the session.
			log.WithError(err).Warn("enrichment failed, falling back to raw transcript")
		} else {
			res.Transcript.Formatted = formatted
		}
	}

	res.Elapsed = time.Since(start)
	log.WithField("elapsed_ms", res.Elapsed.Milliseconds()).Info("session pipeline finished")
	return res, nil
}

func (p *Pipeline) enter(req Request, stage Stage, log *logrus.Entry) {
	log.WithField("stage", stage).Debug("entering stage")
	if p.observer != nil {
		p.observer(req.SessionID, req.ChatID, stage)
	}
}
