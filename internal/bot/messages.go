package bot

import (
	"errors"
	"fmt"
	"html"

	"github.com/davit-gh/speech2text-bot/internal/domain"
)

const (
	greetingMessage = "🎥 <b>Hi!</b>\n\n" +
		"Send me a video, audio file, voice note, or a direct link — " +
		"I'll turn the speech into text ✨"

	processingMessage = "🎧 Processing your file, this can take a moment ⏳"

	noSpeechMessage = "⚠️ I couldn't detect any speech in this file."

	busyMessage = "⏳ I'm handling too many files right now — please try again in a minute."

	hintMessage = "Send me a media file or an http(s) link to one and I'll transcribe it."

	noTranscriptMessage = "I don't have a transcript for this chat yet — send me a file first."
)

// userMessage converts a pipeline failure into one short chat reply.
// Every error lands here; nothing propagates to crash the process.
func userMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return "❌ That doesn't look like a link I can download. " +
			"Send an http(s) URL or a media file."
	}

	var qerr *domain.QuotaExceededError
	if errors.As(err, &qerr) {
		return fmt.Sprintf("⚠️ The file is too big — the limit is %d MiB.", qerr.LimitBytes>>20)
	}

	var terr *domain.TranscodeError
	if errors.As(err, &terr) {
		msg := "❌ I couldn't extract audio from that file."
		if detail := truncate(terr.Detail, 300); detail != "" {
			msg += "\n<code>" + html.EscapeString(detail) + "</code>"
		}
		return msg
	}

	var trerr *domain.TransportError
	if errors.As(err, &trerr) {
		return "❌ I couldn't download that file. Please try again."
	}

	var serr *domain.ServiceError
	if errors.As(err, &serr) {
		return "❌ The transcription service is unavailable right now. Please try again later."
	}

	return "❌ Something went wrong: <code>" + html.EscapeString(truncate(err.Error(), 200)) + "</code>"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
