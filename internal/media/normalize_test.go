package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/domain"
)

type fakeRunner struct {
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f.run(ctx, name, args...)
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}

func hasArgPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestNormalizeExtractionRunsFFmpegWithCanonicalArgs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "lecture.mp4")
	mustWriteFile(t, input, "video")

	var gotName string
	var gotArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			gotName = name
			gotArgs = append([]string{}, args...)
			mustWriteFile(t, args[len(args)-1], "wav")
			return []byte("ok"), nil
		},
	}

	n := NewNormalizerForTests("ffmpeg-test", runner, logrus.NewEntry(logrus.New()))
	out, err := n.Normalize(context.Background(), input, NeedsExtraction)
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}

	if out != input+".wav" {
		t.Fatalf("artifact path = %q, want %q", out, input+".wav")
	}
	if gotName != "ffmpeg-test" {
		t.Fatalf("command = %q, want ffmpeg-test", gotName)
	}
	if !hasArgPair(gotArgs, "-ar", "16000") || !hasArgPair(gotArgs, "-ac", "1") {
		t.Fatalf("args missing 16kHz mono request: %v", gotArgs)
	}
	if !hasArgPair(gotArgs, "-c:a", "pcm_s16le") {
		t.Fatalf("args missing pcm_s16le codec: %v", gotArgs)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
}

func TestNormalizeFailureRemovesPartialArtifactAndCarriesDiagnostic(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.mp4")
	mustWriteFile(t, input, "junk")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			// Simulate ffmpeg dying after it already created the target.
			mustWriteFile(t, args[len(args)-1], "partial")
			return []byte("moov atom not found"), errors.New("exit status 1")
		},
	}

	n := NewNormalizerForTests("ffmpeg", runner, logrus.NewEntry(logrus.New()))
	_, err := n.Normalize(context.Background(), input, NeedsExtraction)

	var terr *domain.TranscodeError
	if !errors.As(err, &terr) {
		t.Fatalf("Normalize error = %v, want TranscodeError", err)
	}
	if terr.Detail != "moov atom not found" {
		t.Fatalf("Detail = %q, want transcoder diagnostic", terr.Detail)
	}
	if _, err := os.Stat(input + ".wav"); !os.IsNotExist(err) {
		t.Fatalf("partial artifact survived failure, stat err = %v", err)
	}
}

func TestNormalizeAlreadyAudioRenamesWithoutTranscoding(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "voice.ogg")
	mustWriteFile(t, input, "ogg-bytes")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			t.Fatal("transcoder must not run for already-audio input")
			return nil, nil
		},
	}

	n := NewNormalizerForTests("ffmpeg", runner, logrus.NewEntry(logrus.New()))
	out, err := n.Normalize(context.Background(), input, AlreadyAudio)
	if err != nil {
		t.Fatalf("Normalize error = %v", err)
	}

	if out != input+".wav" {
		t.Fatalf("artifact path = %q, want %q", out, input+".wav")
	}
	if _, err := os.Stat(input); !os.IsNotExist(err) {
		t.Fatalf("source path still present after rename")
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "ogg-bytes" {
		t.Fatalf("artifact content = %q, err = %v", data, err)
	}
}
