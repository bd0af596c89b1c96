package bot

import (
	"context"
	"errors"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/davit-gh/speech2text-bot/internal/domain"
	"github.com/davit-gh/speech2text-bot/internal/pipeline"
	"github.com/davit-gh/speech2text-bot/internal/storage"
	"github.com/davit-gh/speech2text-bot/internal/textgen"
	"github.com/davit-gh/speech2text-bot/internal/transcripts"
)

// transcriptChunk bounds one outgoing message; Telegram caps at 4096.
const transcriptChunk = 3500

// callbackPrefix tags translation button payloads.
const callbackPrefix = "tr:"

// languageLabels are the button captions per offered target language.
var languageLabels = map[string]string{
	"ru": "🇷🇺 Русский",
	"en": "🇬🇧 English",
	"hy": "🇦🇲 Հայերեն",
}

// Deps carries everything the bot needs. DB and Archiver may be nil.
type Deps struct {
	API       *tgbotapi.BotAPI
	Pool      *pipeline.WorkerPool
	Latest    *transcripts.Latest
	Enricher  textgen.Enricher
	DB        *storage.MetadataDB
	Archiver  *storage.DriveArchiver
	Languages []string
	Log       *logrus.Entry
}

// Bot routes Telegram updates into the processing pipeline and delivers
// results, inline translation controls included.
type Bot struct {
	api       *tgbotapi.BotAPI
	pool      *pipeline.WorkerPool
	latest    *transcripts.Latest
	enricher  textgen.Enricher
	db        *storage.MetadataDB
	archiver  *storage.DriveArchiver
	languages []string
	log       *logrus.Entry
}

// New wires the bot.
func New(d Deps) *Bot {
	langs := d.Languages
	if len(langs) == 0 {
		langs = []string{"ru", "en", "hy"}
	}
	return &Bot{
		api:       d.API,
		pool:      d.Pool,
		latest:    d.Latest,
		enricher:  d.Enricher,
		db:        d.DB,
		archiver:  d.Archiver,
		languages: langs,
		log:       d.Log,
	}
}

// Run polls for updates until the context is canceled. Heavy work never
// happens on this loop: sessions go to the worker pool, translations to
// their own goroutine, so unrelated chats stay responsive.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.WithField("username", b.api.Self.UserName).Info("bot polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		go b.handleCallback(ctx, upd.CallbackQuery)
		return
	}

	msg := upd.Message
	if msg == nil {
		return
	}

	if msg.IsCommand() {
		if msg.Command() == "start" {
			b.send(msg.Chat.ID, greetingMessage)
		}
		return
	}

	if desc, ok := mediaDescriptor(msg); ok {
		b.submit(msg.Chat.ID, desc)
		return
	}

	if raw := strings.TrimSpace(msg.Text); raw != "" {
		if looksLikeURL(raw) {
			b.submit(msg.Chat.ID, domain.RemoteRef(raw))
			return
		}
		b.send(msg.Chat.ID, hintMessage)
	}
}

// submit acknowledges the request and enqueues a session for it.
func (b *Bot) submit(chatID int64, desc domain.InputDescriptor) {
	b.send(chatID, processingMessage)

	sessionID := uuid.New().String()
	job := &pipeline.Job{
		Request: pipeline.Request{
			SessionID: sessionID,
			ChatID:    chatID,
			Input:     desc,
		},
		Deliver: func(res *pipeline.Result, err error) {
			b.deliver(chatID, sessionID, desc, res, err)
		},
	}

	if !b.pool.Enqueue(job) {
		b.send(chatID, busyMessage)
	}
}

// deliver runs on a worker goroutine once the pipeline terminates.
func (b *Bot) deliver(chatID int64, sessionID string, desc domain.InputDescriptor, res *pipeline.Result, err error) {
	rec := storage.SessionRecord{
		SessionID:  sessionID,
		ChatID:     chatID,
		SourceType: desc.Kind,
		Title:      desc.DisplayName(),
	}

	if err != nil {
		b.log.WithError(err).WithField("session", sessionID).Warn("session failed")
		b.send(chatID, userMessage(err))
		rec.Outcome = storage.OutcomeFailed
		rec.FailedStage = failedStage(err)
		b.record(rec, "")
		return
	}

	rec.ElapsedMS = res.Elapsed.Milliseconds()

	if res.NoSpeech {
		b.send(chatID, noSpeechMessage)
		rec.Outcome = storage.OutcomeNoSpeech
		b.record(rec, "")
		return
	}

	b.latest.Put(chatID, res.Transcript)

	text := res.Transcript.Text()
	b.sendTranscript(chatID, text)

	rec.Outcome = storage.OutcomeCompleted
	rec.WordCount = len(strings.Fields(text))

	if b.archiver != nil {
		archiveURL, archErr := b.archiver.Archive(context.Background(), rec, res.Transcript)
		if archErr != nil {
			b.log.WithError(archErr).WithField("session", sessionID).Warn("transcript archival failed")
		} else {
			rec.ArchiveURL = archiveURL
		}
	}

	b.record(rec, text)
}

// sendTranscript splits long transcripts across messages and attaches
// the translation keyboard to the last one.
func (b *Bot) sendTranscript(chatID int64, text string) {
	chunks := splitChunks("📝 <b>Transcript:</b>\n\n"+text, transcriptChunk)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		if i == len(chunks)-1 {
			msg.ReplyMarkup = b.translationKeyboard()
		}
		if _, err := b.api.Send(msg); err != nil {
			b.log.WithError(err).Warn("failed to send transcript message")
			return
		}
	}
}

func (b *Bot) translationKeyboard() tgbotapi.InlineKeyboardMarkup {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(b.languages))
	for _, code := range b.languages {
		label, ok := languageLabels[code]
		if !ok {
			label = code
		}
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(label, callbackPrefix+code))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
}

// handleCallback translates the chat's latest transcript into the tapped
// language. Runs off the update loop; the backend call is slow.
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.WithError(err).Debug("failed to answer callback query")
	}

	if q.Message == nil || !strings.HasPrefix(q.Data, callbackPrefix) {
		return
	}
	code := strings.TrimPrefix(q.Data, callbackPrefix)
	chatID := q.Message.Chat.ID

	t, ok := b.latest.Get(chatID)
	if !ok {
		b.send(chatID, noTranscriptMessage)
		return
	}

	if cached, ok := b.latest.CachedTranslation(chatID, code); ok {
		b.sendTranslation(chatID, code, cached)
		return
	}

	translated, err := b.enricher.Translate(ctx, t.Text(), code)
	if err != nil {
		b.log.WithError(err).WithField("lang", code).Warn("translation failed")
		b.send(chatID, "❌ Translation is unavailable right now. Please try again later.")
		return
	}

	b.latest.CacheTranslation(chatID, code, translated)
	b.sendTranslation(chatID, code, translated)
}

func (b *Bot) sendTranslation(chatID int64, code, text string) {
	for _, chunk := range splitChunks("🌐 <b>Translation ("+code+"):</b>\n\n"+text, transcriptChunk) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(msg); err != nil {
			b.log.WithError(err).Warn("failed to send translation message")
			return
		}
	}
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Warn("failed to send message")
	}
}

func (b *Bot) record(rec storage.SessionRecord, transcript string) {
	if b.db == nil {
		return
	}
	if err := b.db.SaveSession(rec, transcript); err != nil {
		b.log.WithError(err).WithField("session", rec.SessionID).Warn("failed to persist session")
	}
}

// failedStage pulls the originating stage out of a pipeline error.
func failedStage(err error) string {
	var serr *pipeline.StageError
	if errors.As(err, &serr) {
		return string(serr.Stage)
	}
	return ""
}

// mediaDescriptor extracts an upload descriptor from a media message.
// Documents qualify only when their declared type is audio or video.
func mediaDescriptor(msg *tgbotapi.Message) (domain.InputDescriptor, bool) {
	switch {
	case msg.Voice != nil:
		return domain.UploadRef(msg.Voice.FileID, msg.Voice.FileUniqueID, "voice.ogg"), true
	case msg.Audio != nil:
		return domain.UploadRef(msg.Audio.FileID, msg.Audio.FileUniqueID, msg.Audio.FileName), true
	case msg.Video != nil:
		return domain.UploadRef(msg.Video.FileID, msg.Video.FileUniqueID, msg.Video.FileName), true
	case msg.VideoNote != nil:
		return domain.UploadRef(msg.VideoNote.FileID, msg.VideoNote.FileUniqueID, "video_note.mp4"), true
	case msg.Document != nil:
		mt := msg.Document.MimeType
		if strings.HasPrefix(mt, "video") || strings.HasPrefix(mt, "audio") {
			return domain.UploadRef(msg.Document.FileID, msg.Document.FileUniqueID, msg.Document.FileName), true
		}
	}
	return domain.InputDescriptor{}, false
}

// looksLikeURL accepts any single-token absolute URL. Scheme policy is
// the acquirer's call, so unsupported schemes still produce a proper
// validation reply instead of being silently ignored here.
func looksLikeURL(text string) bool {
	if strings.ContainsAny(text, " \n\t") {
		return false
	}
	u, err := url.Parse(text)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// splitChunks breaks text at the chunk limit, preferring newline then
// space boundaries.
func splitChunks(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		if i := strings.LastIndexByte(text[:limit], '\n'); i > limit/2 {
			cut = i
		} else if i := strings.LastIndexByte(text[:limit], ' '); i > limit/2 {
			cut = i
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
