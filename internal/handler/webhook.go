package handler

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/wentilabs/wenti-namecard-agent/internal/config"
	"github.com/wentilabs/wenti-namecard-agent/internal/service"
)

// WebhookHandler はTelegram Webhookを処理するハンドラー
type WebhookHandler struct {
	chat  service.ChatClient
	agent service.Extraction
}

// NewWebhookHandler は新しいWebhookHandlerを作成
func NewWebhookHandler(chat service.ChatClient, agent service.Extraction) *WebhookHandler {
	return &WebhookHandler{
		chat:  chat,
		agent: agent,
	}
}

// HandleTelegramWebhook はTelegramからのWebhook配信を処理する。
// 配信プラットフォーム側のリトライ判断に委ねるため、未処理の失敗は
// 必ず500 + エラー本文に変換して返す。
func (h *WebhookHandler) HandleTelegramWebhook(c *gin.Context) {
	status, body := h.handleUpdate(c)
	c.String(status, body)
}

func (h *WebhookHandler) handleUpdate(c *gin.Context) (status int, body string) {
	var chatID int64

	// 最終防衛線: パイプラインを抜けた例外はここで捕捉する
	defer func() {
		if r := recover(); r != nil {
			log.Printf("an error occurred in telegram handler: %v", r)
			h.notifyChatError(chatID)
			status = http.StatusInternalServerError
			body = fmt.Sprintf("ERROR: %v", r)
		}
	}()

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		log.Printf("an error occurred in telegram handler: %v", err)
		return http.StatusInternalServerError, "ERROR: " + err.Error()
	}

	message := update.Message
	if message == nil {
		return http.StatusOK, "nothing"
	}

	chatID = chatIDOf(message)
	log.Printf("telegramUserId: %d", userIDOf(message))

	if len(message.Photo) == 0 {
		// 写真なし: 定型の案内のみ返す
		h.sendBestEffort(chatID, config.MsgSendPhoto, true)
		return http.StatusOK, "SUCCESS"
	}

	// 受領確認
	h.sendBestEffort(chatID, config.MsgExtracting, true)

	result := h.agent.Extract(c.Request.Context(), message)
	log.Printf("Extraction result: success=%v", result.Success)

	if err := h.chat.SendMessage(chatID, result.Message); err != nil {
		log.Printf("Error replying message: %v", err)
	}

	return http.StatusOK, "SUCCESS"
}

// sendBestEffort はタイピング表示とメッセージ送信を行う。失敗はログのみ。
func (h *WebhookHandler) sendBestEffort(chatID int64, text string, typing bool) {
	if typing {
		if err := h.chat.SendTyping(chatID); err != nil {
			log.Printf("Error sending chat action: %v", err)
		}
	}
	if err := h.chat.SendMessage(chatID, text); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// notifyChatError は処理失敗をユーザーにベストエフォートで通知する
func (h *WebhookHandler) notifyChatError(chatID int64) {
	if chatID == 0 {
		return
	}
	if err := h.chat.SendMessage(chatID, config.MsgHandlerError); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

// SetupWebhook は自プロセスの公開URLを導出してTelegramに登録する
func (h *WebhookHandler) SetupWebhook(c *gin.Context) {
	webhookURL := deriveWebhookURL(c)
	if webhookURL == "" {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Error setting webhook: could not determine public URL",
		})
		return
	}

	if err := h.chat.RegisterWebhook(webhookURL); err != nil {
		log.Printf("Error setting the Telegram webhook: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": fmt.Sprintf("Error setting webhook: %s", err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Webhook set successfully to: %s", webhookURL),
	})
}

// Root はデフォルトルート
func (h *WebhookHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Wenti Namecard Agent is running",
		"setup":   "Visit /setup-webhook to configure the Telegram webhook automatically",
	})
}

// HealthCheck はヘルスチェックエンドポイント
func (h *WebhookHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// deriveWebhookURL はWebhook登録用の公開URLを導出する。
// 優先順: 環境変数 → Cloud RunのサービスURL → リクエストのホスト名。
func deriveWebhookURL(c *gin.Context) string {
	if config.WebhookBaseURL != "" {
		return strings.TrimRight(config.WebhookBaseURL, "/") + config.WebhookPath
	}

	if url := cloudRunServiceURL(); url != "" {
		return url + config.WebhookPath
	}

	host := c.Request.Host
	if host == "" {
		return ""
	}
	return "https://" + host + config.WebhookPath
}

// cloudRunServiceURL はCloud Run環境変数からサービスURLを構築する
func cloudRunServiceURL() string {
	serviceName := config.GetEnv("K_SERVICE", "")
	if serviceName == "" {
		return ""
	}

	// 新形式: https://{service}-{project_number}.{region}.run.app
	projectNumber := config.GetEnv("GCP_PROJECT_NUMBER", "")
	if projectNumber != "" {
		return fmt.Sprintf("https://%s-%s.%s.run.app", serviceName, projectNumber, config.GCPRegion)
	}

	// プロジェクト番号がない場合は旧形式
	if config.GCPProjectID != "" {
		return fmt.Sprintf("https://%s-%s.a.run.app", serviceName, config.GCPProjectID)
	}

	return ""
}

func chatIDOf(message *tgbotapi.Message) int64 {
	if message.Chat != nil {
		return message.Chat.ID
	}
	if message.From != nil {
		return message.From.ID
	}
	return 0
}

func userIDOf(message *tgbotapi.Message) int64 {
	if message.From != nil {
		return message.From.ID
	}
	return 0
}
