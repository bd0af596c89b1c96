package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/davit-gh/speech2text-bot/internal/acquire"
	"github.com/davit-gh/speech2text-bot/internal/bot"
	"github.com/davit-gh/speech2text-bot/internal/config"
	"github.com/davit-gh/speech2text-bot/internal/logging"
	"github.com/davit-gh/speech2text-bot/internal/media"
	"github.com/davit-gh/speech2text-bot/internal/ops"
	"github.com/davit-gh/speech2text-bot/internal/pipeline"
	"github.com/davit-gh/speech2text-bot/internal/speech"
	"github.com/davit-gh/speech2text-bot/internal/staging"
	"github.com/davit-gh/speech2text-bot/internal/storage"
	"github.com/davit-gh/speech2text-bot/internal/textgen"
	"github.com/davit-gh/speech2text-bot/internal/transcripts"
)

func main() {
	_ = godotenv.Load()

	log := logging.New()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	store, err := staging.New(cfg.Storage.TempDir, logging.Component(log, "staging"))
	if err != nil {
		log.WithError(err).Fatal("failed to prepare scratch directory")
	}

	sweeper := staging.NewSweeper(store,
		time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute,
		time.Duration(cfg.Cleanup.MaxAgeHours)*time.Hour,
		logging.Component(log, "sweeper"))
	sweeper.Start()

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Telegram")
	}

	aiClient := openai.NewClient(cfg.OpenAI.APIKey)
	transcriber := speech.NewWhisperClient(aiClient, cfg.OpenAI.WhisperModel, logging.Component(log, "speech"))
	enricher := textgen.NewChatClient(aiClient, cfg.OpenAI.ChatModel, logging.Component(log, "textgen"))

	acquirer := acquire.New(
		bot.NewFileResolver(api),
		int64(cfg.Limits.MaxRemoteSizeMB)<<20,
		time.Duration(cfg.Limits.TransferTimeoutSeconds)*time.Second,
		logging.Component(log, "acquire"))
	normalizer := media.NewNormalizer(logging.Component(log, "media"))

	hub := ops.NewEventHub(logging.Component(log, "ops"))
	observer := func(sessionID string, chatID int64, stage pipeline.Stage) {
		hub.Publish(ops.Event{SessionID: sessionID, ChatID: chatID, Stage: string(stage)})
	}

	pl := pipeline.New(store, acquirer, normalizer, transcriber, enricher, observer,
		logging.Component(log, "pipeline"))
	pool := pipeline.NewWorkerPool(cfg.Workers.Count, pl, observer, logging.Component(log, "workers"))
	pool.Start()

	var db *storage.MetadataDB
	if cfg.Storage.Database != "" {
		if dir := filepath.Dir(cfg.Storage.Database); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.WithError(err).Fatal("failed to create database directory")
			}
		}
		db, err = storage.NewMetadataDB(cfg.Storage.Database)
		if err != nil {
			log.WithError(err).Fatal("failed to open metadata database")
		}
		defer db.Close()
	}

	var archiver *storage.DriveArchiver
	if _, err := os.Stat(cfg.Drive.CredentialsFile); err == nil {
		archiver, err = storage.NewDriveArchiver(
			cfg.Drive.CredentialsFile, cfg.Drive.TokenFile, cfg.Drive.FolderName,
			logging.Component(log, "drive"))
		if err != nil {
			log.WithError(err).Warn("Google Drive archival unavailable")
			archiver = nil
		} else {
			log.Info("Google Drive archival enabled")
		}
	} else {
		log.Info("Google Drive credentials not found, archival disabled")
	}

	var opsServer *ops.Server
	if cfg.Ops.Enabled {
		opsServer = ops.NewServer(db, hub, logging.Component(log, "ops"))
		go func() {
			if err := opsServer.Listen(cfg.Ops.Host, cfg.Ops.Port); err != nil {
				log.WithError(err).Error("ops server stopped")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bot.New(bot.Deps{
		API:       api,
		Pool:      pool,
		Latest:    transcripts.NewLatest(),
		Enricher:  enricher,
		DB:        db,
		Archiver:  archiver,
		Languages: cfg.Translation.Languages,
		Log:       logging.Component(log, "bot"),
	})
	b.Run(ctx)

	log.Info("shutting down")
	pool.Stop()
	sweeper.Stop()
	if opsServer != nil {
		if err := opsServer.Shutdown(); err != nil {
			log.WithError(err).Warn("ops server shutdown failed")
		}
	}
}
