package speech

import (
	"context"
	"path/filepath"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/domain"
)

// Transcriber is the speech-recognition boundary: canonical audio in,
// plain text out. A whitespace-only result is valid, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// WhisperClient transcribes audio through the OpenAI Whisper API.
type WhisperClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     *logrus.Entry
}

// NewWhisperClient wraps an already-constructed API client. An empty
// model selects whisper-1.
func NewWhisperClient(client *openai.Client, model string, log *logrus.Entry) *WhisperClient {
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperClient{
		client:  client,
		model:   model,
		timeout: 300 * time.Second,
		log:     log,
	}
}

// Transcribe uploads the artifact and returns the recognized text.
func (w *WhisperClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", &domain.ServiceError{Backend: "speech", Err: err}
	}

	w.log.WithFields(logrus.Fields{
		"artifact":   filepath.Base(audioPath),
		"chars":      len(resp.Text),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("transcription finished")
	return resp.Text, nil
}
