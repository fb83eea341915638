package config

import (
	"os"
	"strings"
)

// 実行モード設定
// local: ローカル開発（環境変数のみ、起動時にWebhook登録可）
// cloud: Cloud Run等のデプロイ環境（Secret Manager優先）
var (
	RunMode = GetEnv("RUN_MODE", "cloud")

	GCPProjectID = GetEnv("GCP_PROJECT_ID", "your-project-id")
	GCPRegion    = GetEnv("GCP_REGION", "asia-southeast1")

	// Webhook設定
	WebhookBaseURL = os.Getenv("WEBHOOK_URL")
	WebhookPath    = GetEnv("WEBHOOK_PATH", "/telegram-webhook")

	// 管理系エンドポイントの認証設定
	// required | optional | disabled
	AdminAuthMode = GetEnv("ADMIN_AUTH_MODE", "disabled")
	AdminToken    = os.Getenv("ADMIN_TOKEN")

	// Discord通知設定（未設定なら通知無効）
	DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")
)

// Secret Manager / 環境変数のシークレット名
const (
	SecretTelegramBotToken    = "TELEGRAM_BOT_TOKEN"
	SecretOpenAIAPIKey        = "OPENAI_API_KEY"
	SecretSheetsID            = "GOOGLE_SHEETS_ID"
	SecretServiceAccountEmail = "GOOGLE_SERVICE_ACCOUNT_EMAIL"
	SecretServiceAccountKey   = "GOOGLE_SERVICE_ACCOUNT_PRIVATE_KEY"
)

// OpenAI設定
type OpenAIConfig struct {
	Model    string
	BaseURL  string
	ToolName string
}

var OpenAI = OpenAIConfig{
	Model:    GetEnv("OPENAI_MODEL", "gpt-4.1"),
	BaseURL:  GetEnv("OPENAI_BASE_URL", "https://api.openai.com"),
	ToolName: "extract_namecard_data",
}

// Field は名刺から抽出するフィールドの定義
type Field struct {
	Key   string
	Label string
}

// FieldSchema は抽出フィールドの正準スキーマ。
// 宣言順が (a) 抽出ツールの必須フィールド一覧、(b) 表示順、
// (c) スプレッドシート列との対応付けの基準になる。remarks は常に最後。
var FieldSchema = []Field{
	{Key: "full_name", Label: "Full Name"},
	{Key: "first_name", Label: "First Name"},
	{Key: "email", Label: "Email"},
	{Key: "company", Label: "Company"},
	{Key: "mobile", Label: "Mobile"},
	{Key: "remarks", Label: "Remarks"},
}

// FieldRemarks はキャプションで上書きされる特別フィールド
const FieldRemarks = "remarks"

// PhoneLikeKeys は数値自動変換を防ぐためアポストロフィを付与する列キー
var PhoneLikeKeys = map[string]bool{
	"phone":         true,
	"mobile":        true,
	"mobile_number": true,
	"phone_number":  true,
}

// スプレッドシート設定
var (
	SheetName        = GetEnv("SHEET_NAME", "crm")
	IncludeTimestamp = GetEnvBool("SHEET_INCLUDE_TIMESTAMP", true)
)

// ユーザー向けメッセージ
const (
	SuccessHeader = "✅ Name Card Extracted"

	MsgNoImage     = "No image found in the message."
	MsgNotNamecard = "This doesn't appear to be a business card. Please upload a clear image of a business card."
	MsgUnreadable  = "I couldn't extract information from this image. Please upload a clearer image of a business card and make sure the name card is upright."
	MsgLLMFailure  = "An error occurred while processing the image. Please try again later."

	MsgExtracting   = "Extracting information from the image... This may take a few seconds."
	MsgSendPhoto    = "Please send me a photo of a business card to extract information."
	MsgHandlerError = "Sorry, an error occurred while processing your request. Please try again later."
)

// API設定
type APIConfig struct {
	TelegramTimeoutMS int
	OpenAITimeoutMS   int
	SheetsTimeoutMS   int
}

var API = APIConfig{
	TelegramTimeoutMS: 30000,
	OpenAITimeoutMS:   60000,
	SheetsTimeoutMS:   30000,
}

// IsLocal はローカル開発モードかどうかを返す
func IsLocal() bool {
	return strings.EqualFold(strings.TrimSpace(RunMode), "local")
}

// GetEnv は環境変数を取得し、存在しない場合はデフォルト値を返す
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvBool は環境変数をboolとして取得する
func GetEnvBool(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}
