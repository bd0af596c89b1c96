package media

import (
	"mime"
	"path/filepath"
	"strings"
)

// Classification says whether a staged file can go straight to the
// transcription backend or needs its audio track extracted first.
type Classification int

const (
	// NeedsExtraction is the fail-safe default: when in doubt, run the
	// transcoder, which copes with any decodable container.
	NeedsExtraction Classification = iota

	// AlreadyAudio marks files in an audio container; they are renamed to
	// the canonical artifact path without re-encoding.
	AlreadyAudio
)

func (c Classification) String() string {
	if c == AlreadyAudio {
		return "already_audio"
	}
	return "needs_extraction"
}

// audioExts are containers the transcription backend accepts directly.
var audioExts = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".flac": true,
	".aac":  true,
	".wma":  true,
}

// Classify infers from the file's name only — the content is never
// probed. A missing or non-audio extension yields NeedsExtraction.
func Classify(name string) Classification {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return NeedsExtraction
	}
	if audioExts[ext] {
		return AlreadyAudio
	}
	if mt := mime.TypeByExtension(ext); strings.HasPrefix(mt, "audio/") {
		return AlreadyAudio
	}
	return NeedsExtraction
}
