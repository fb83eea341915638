package service

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/wentilabs/wenti-namecard-agent/internal/config"
)

// ChatClient はチャットプラットフォームへの送信操作の抽象化
type ChatClient interface {
	SendMessage(chatID int64, text string) error
	SendTyping(chatID int64) error
	SendPhoto(chatID int64, photoURL, caption string) error
	PhotoURL(fileID string) (string, error)
	RegisterWebhook(url string) error
}

// TelegramClient はTelegram Bot APIクライアント。
// Botハンドルは初回利用時にトークン解決とあわせて遅延構築し、以降は再利用する。
type TelegramClient struct {
	resolver SecretResolver

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramClient は新しいTelegramClientを作成
func NewTelegramClient(resolver SecretResolver) *TelegramClient {
	return &TelegramClient{resolver: resolver}
}

// api はメモ化されたBot APIハンドルを返す（シングルトン）
func (c *TelegramClient) api() (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bot != nil {
		return c.bot, nil
	}

	token, err := c.resolver.Get(context.Background(), config.SecretTelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve telegram bot token: %w", err)
	}

	httpClient := &http.Client{
		Timeout: time.Duration(config.API.TelegramTimeoutMS) * time.Millisecond,
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot client: %w", err)
	}

	log.Printf("Telegram bot client initialized: @%s", bot.Self.UserName)
	c.bot = bot
	return c.bot, nil
}

// SendMessage はテキストメッセージを送信する
func (c *TelegramClient) SendMessage(chatID int64, text string) error {
	bot, err := c.api()
	if err != nil {
		return err
	}

	if _, err := bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// SendTyping は「入力中…」アクションを送信する
func (c *TelegramClient) SendTyping(chatID int64) error {
	bot, err := c.api()
	if err != nil {
		return err
	}

	if _, err := bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("failed to send chat action: %w", err)
	}
	return nil
}

// SendPhoto は画像URLを指定して写真を送信する
func (c *TelegramClient) SendPhoto(chatID int64, photoURL, caption string) error {
	bot, err := c.api()
	if err != nil {
		return err
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	if _, err := bot.Send(photo); err != nil {
		return fmt.Errorf("failed to send telegram photo: %w", err)
	}
	return nil
}

// PhotoURL はfile_idをダウンロード可能なURLに解決する
func (c *TelegramClient) PhotoURL(fileID string) (string, error) {
	bot, err := c.api()
	if err != nil {
		return "", err
	}

	url, err := bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file url: %w", err)
	}
	return url, nil
}

// RegisterWebhook はTelegramにWebhook URLを登録する
func (c *TelegramClient) RegisterWebhook(url string) error {
	bot, err := c.api()
	if err != nil {
		return err
	}

	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("failed to build webhook config: %w", err)
	}

	resp, err := bot.Request(wh)
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("failed to set webhook: %s", resp.Description)
	}

	log.Printf("Webhook set successfully to %s", url)
	return nil
}
