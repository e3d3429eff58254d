package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tgfetch/url-uploader-bot/internal/api"
	"github.com/tgfetch/url-uploader-bot/internal/configuration"
	"github.com/tgfetch/url-uploader-bot/internal/intake"
	"github.com/tgfetch/url-uploader-bot/internal/probe"
	"github.com/tgfetch/url-uploader-bot/internal/resolver"
	"github.com/tgfetch/url-uploader-bot/internal/services"
	"github.com/tgfetch/url-uploader-bot/internal/session"
	"github.com/tgfetch/url-uploader-bot/internal/storage"
	"github.com/tgfetch/url-uploader-bot/internal/telegram"
	"github.com/tgfetch/url-uploader-bot/internal/transfer"
	"github.com/tgfetch/url-uploader-bot/internal/upload"
)

func main() {
	cfg := configuration.Load()
	if cfg.Telegram.BotToken == "" {
		log.Fatal("BOT_TOKEN is required")
	}

	tracer.Start(tracer.WithService("url-uploader-bot"))
	defer tracer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Connect(cfg.Database.ConnectionString(), cfg.Limits)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer store.Close()

	minioSvc, err := services.NewMinio(cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	// The event bus and the auth issuer are optional backends: the bot keeps
	// working without them.
	nc, err := services.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Printf("Warning: NATS unavailable, upload events disabled: %v", err)
	}
	events := services.NewEventPublisher(nc)

	if cfg.KeycloakUrl != "" {
		if err := api.InitAuth(cfg.KeycloakUrl); err != nil {
			log.Printf("Warning: OIDC init failed, /api/stats stays locked: %v", err)
		}
	}

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Fatalf("Failed to create download dir %s: %v", cfg.DownloadDir, err)
	}

	media := resolver.New(cfg.ProxyURL, cfg.CookiesFile, cfg.Limits.ProgressInterval)
	if err := resolver.Install(ctx); err != nil {
		log.Printf("Warning: yt-dlp install failed, relying on an existing binary: %v", err)
	}

	bot, err := telegram.Connect(cfg.Telegram.BotToken)
	if err != nil {
		log.Fatalf("Failed to connect to Telegram: %v", err)
	}

	sessions := session.NewStore()
	machine := intake.NewMachine(
		intake.Config{
			Limits:      cfg.Limits,
			DownloadDir: cfg.DownloadDir,
			LogChannel:  cfg.Telegram.LogChannel,
		},
		bot.Gateway(),
		store,
		probe.NewProber(media, cfg.ProxyURL, cfg.Limits.MaxFileSize),
		media,
		transfer.NewEngine(cfg.ProxyURL, cfg.Limits.ProgressInterval, cfg.Limits.MaxFileSize),
		upload.NewMinioUploader(minioSvc, events, cfg.CLAMAVURL),
		sessions,
	)
	commands := telegram.NewCommandHandler(cfg, bot.Gateway(), store)

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(api.Deps{
			Users:    store,
			Minio:    minioSvc,
			NATS:     nc,
			Sessions: sessions,
		}),
	}
	go func() {
		log.Printf("HTTP server starting on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Println("✅ Bot is up, waiting for updates")
	bot.Run(ctx, machine, commands)

	log.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if nc != nil {
		nc.Drain()
	}
}
