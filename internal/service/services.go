package service

// Services は全サービスをまとめた構造体
type Services struct {
	Resolver        SecretResolver
	Telegram        *TelegramClient
	OpenAI          *OpenAIClient
	Sheets          *SheetsClient
	Extractor       *Extractor
	DiscordNotifier *DiscordNotifier
}
