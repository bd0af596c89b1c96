package media

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/domain"
)

// CanonicalExt is the suffix of every canonical audio artifact.
const CanonicalExt = ".wav"

// commandRunner abstracts transcoder execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner shells out and captures combined output.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Normalizer converts an arbitrary staged media file into the canonical
// transcription format: mono, 16 kHz, 16-bit PCM WAV.
type Normalizer struct {
	ffmpegPath string
	runner     commandRunner
	log        *logrus.Entry
}

// NewNormalizer builds a normalizer shelling out to ffmpeg on PATH.
func NewNormalizer(log *logrus.Entry) *Normalizer {
	return &Normalizer{
		ffmpegPath: "ffmpeg",
		runner:     execRunner{},
		log:        log,
	}
}

// Normalize produces the canonical artifact at inputPath + ".wav" and
// returns its path.
//
// Already-audio inputs are renamed into place without resampling; audio
// not already at 16 kHz mono is passed to the backend as-is, which can
// cost some accuracy on unusual sources. Everything else goes through
// ffmpeg, overwriting any stale file at the target. Failures never leave
// a partially written artifact behind.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string, class Classification) (string, error) {
	outPath := inputPath + CanonicalExt

	if class == AlreadyAudio {
		if err := os.Rename(inputPath, outPath); err != nil {
			return "", &domain.TranscodeError{Err: err}
		}
		n.log.WithField("artifact", filepath.Base(outPath)).Debug("audio input renamed to canonical path")
		return outPath, nil
	}

	args := buildFFmpegArgs(inputPath, outPath)
	output, err := n.runner.Run(ctx, n.ffmpegPath, args...)
	if err != nil {
		if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			n.log.WithError(rmErr).Warn("failed to remove partial artifact")
		}
		return "", &domain.TranscodeError{Detail: diagnosticTail(output), Err: err}
	}

	n.log.WithField("artifact", filepath.Base(outPath)).Debug("audio track extracted")
	return outPath, nil
}

// buildFFmpegArgs requests a mono 16 kHz PCM WAV, overwriting the target.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// diagnosticTail keeps the end of the transcoder output, where ffmpeg
// prints the actual failure reason.
func diagnosticTail(output []byte) string {
	const max = 2000
	s := string(output)
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

// NewNormalizerForTests constructs a normalizer with an injected runner.
func NewNormalizerForTests(ffmpegPath string, runner commandRunner, log *logrus.Entry) *Normalizer {
	return &Normalizer{ffmpegPath: ffmpegPath, runner: runner, log: log}
}
