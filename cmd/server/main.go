package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wentilabs/wenti-namecard-agent/internal/config"
	"github.com/wentilabs/wenti-namecard-agent/internal/handler"
	"github.com/wentilabs/wenti-namecard-agent/internal/observability"
	"github.com/wentilabs/wenti-namecard-agent/internal/service"
)

func main() {
	ctx := context.Background()

	observability.Init()

	// サービスの初期化
	services := initServices(ctx)

	// Ginルーターの設定
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestContextMiddleware())
	router.Use(observability.AccessLogMiddleware())

	// ハンドラーの初期化
	webhookHandler := handler.NewWebhookHandler(services.Telegram, services.Extractor)

	// ルートの設定
	router.POST(config.WebhookPath, webhookHandler.HandleTelegramWebhook)
	router.GET("/setup-webhook", handler.AdminAuthMiddleware(), webhookHandler.SetupWebhook)
	router.POST("/setup-webhook", handler.AdminAuthMiddleware(), webhookHandler.SetupWebhook)
	router.GET("/health", webhookHandler.HealthCheck)
	router.NoRoute(webhookHandler.Root)

	// ローカル開発時はWEBHOOK_URLが指定されていれば起動時に登録
	if config.IsLocal() && config.WebhookBaseURL != "" {
		webhookURL := strings.TrimRight(config.WebhookBaseURL, "/") + config.WebhookPath
		if err := services.Telegram.RegisterWebhook(webhookURL); err != nil {
			log.Printf("Warning: failed to register webhook at startup: %v", err)
		}
	}

	// ポート設定
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s (mode: %s)", port, config.RunMode)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initServices は全サービスを初期化
func initServices(ctx context.Context) *service.Services {
	resolver := service.NewSecretResolver(ctx)

	// DiscordNotifier (オプショナル)
	notifier := service.NewDiscordNotifier(config.DiscordWebhookURL)
	if notifier == nil {
		log.Printf("Discord notifier disabled (DISCORD_WEBHOOK_URL not set)")
	}

	telegram := service.NewTelegramClient(resolver)
	openai := service.NewOpenAIClient(resolver)
	sheets := service.NewSheetsClient(resolver)

	extractor := service.NewExtractor(telegram, openai, sheets, notifier)

	return &service.Services{
		Resolver:        resolver,
		Telegram:        telegram,
		OpenAI:          openai,
		Sheets:          sheets,
		Extractor:       extractor,
		DiscordNotifier: notifier,
	}
}
