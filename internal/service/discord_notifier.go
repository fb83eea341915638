package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// DiscordNotifier は運用者向けにDiscord Webhookで通知を送信するクライアント
type DiscordNotifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordNotifier は新しいDiscordNotifierを作成する。URLが空の場合はnilを返す。
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	if webhookURL == "" {
		return nil
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// discordEmbed はDiscord Embed構造体
type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields,omitempty"`
	Timestamp string         `json:"timestamp"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

const colorRed = 0xFF0000

// NotifyExtractionError は抽出・保存の失敗をDiscordに通知する。
// ベストエフォート: 失敗してもログに残すのみ。
func (d *DiscordNotifier) NotifyExtractionError(chatID int64, stage, errorMsg string) {
	if d == nil {
		return
	}

	embed := discordEmbed{
		Title: "名刺抽出エラー",
		Color: colorRed,
		Fields: []discordField{
			{Name: "チャット", Value: fmt.Sprintf("%d", chatID), Inline: true},
			{Name: "段階", Value: stage, Inline: true},
			{Name: "エラー", Value: truncate(errorMsg, 1024), Inline: false},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	d.send(discordPayload{Embeds: []discordEmbed{embed}})
}

// send はDiscord Webhookにペイロードを送信する
func (d *DiscordNotifier) send(payload discordPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Discord通知: JSONエンコード失敗: %v", err)
		return
	}

	resp, err := d.httpClient.Post(d.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("Discord通知: 送信失敗: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("Discord通知: HTTPエラー: %d", resp.StatusCode)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
