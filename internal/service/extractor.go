package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/wentilabs/wenti-namecard-agent/internal/config"
	"github.com/wentilabs/wenti-namecard-agent/internal/model"
)

// Extraction は名刺抽出パイプラインの抽象化（ハンドラーのテスト用）
type Extraction interface {
	Extract(ctx context.Context, message *tgbotapi.Message) model.ExtractionResult
}

// Extractor は名刺画像1枚を整形済み返信と構造化レコードに変換するパイプライン
type Extractor struct {
	chat     ChatClient
	llm      ResponsesCaller
	sheets   RowAppender
	notifier *DiscordNotifier
}

// NewExtractor は新しいExtractorを作成
func NewExtractor(chat ChatClient, llm ResponsesCaller, sheets RowAppender, notifier *DiscordNotifier) *Extractor {
	return &Extractor{
		chat:     chat,
		llm:      llm,
		sheets:   sheets,
		notifier: notifier,
	}
}

const extractionInstructions = `You are an assistant that helps to extract structured data from name card images.

Guidelines for extraction:
- Extract the first name, full name, email, company name and mobile number
- Compare the email name and the full name to extract the first name
- Name could be chinese and the first name would be two words and the last name appear at the front
- Remove all spaces and special characters from the mobile number.
- For mobile number, make sure you remove + sign or any other special characters. The format should just be 6591234567 or 91234567`

const extractionUserText = `Analyze this name card and extract all structured data.

Do not reply with a text summary. Only call the function with the extracted data.`

// Extract は写真付きメッセージを処理し、抽出結果を返す。
// 写真がない場合はネットワーク呼び出しを一切行わずに即失敗する。
func (e *Extractor) Extract(ctx context.Context, message *tgbotapi.Message) model.ExtractionResult {
	if message == nil || len(message.Photo) == 0 {
		return model.ExtractionResult{Success: false, Message: config.MsgNoImage}
	}

	// 最後の要素が最高解像度
	photo := message.Photo[len(message.Photo)-1]
	photoURL, err := e.chat.PhotoURL(photo.FileID)
	if err != nil {
		log.Printf("Failed to resolve photo url: %v", err)
		e.notifier.NotifyExtractionError(chatIDOf(message), "resolve_photo", err.Error())
		return model.ExtractionResult{Success: false, Message: config.MsgLLMFailure, Err: err.Error()}
	}

	log.Printf("Calling OpenAI for name card extraction")
	resp, err := e.llm.CreateResponse(ctx, buildExtractionRequest(photoURL))
	if err != nil {
		log.Printf("Name card extraction failed: %v", err)
		e.notifier.NotifyExtractionError(chatIDOf(message), "openai", err.Error())
		return model.ExtractionResult{Success: false, Message: config.MsgLLMFailure, Err: err.Error()}
	}
	log.Printf("OpenAI response received for name card extraction")

	outcome := resp.Outcome()
	switch outcome.Kind {
	case OutcomeToolCall:
		if outcome.ToolName != config.OpenAI.ToolName {
			log.Printf("Unexpected tool call: %s", outcome.ToolName)
			return model.ExtractionResult{Success: false, Message: config.MsgUnreadable}
		}

		record, err := parseToolArguments(outcome.Arguments)
		if err != nil {
			log.Printf("Failed to parse tool arguments: %v", err)
			return model.ExtractionResult{Success: false, Message: config.MsgUnreadable, Err: err.Error()}
		}

		// キャプションはモデルの推測より優先してremarksに入れる
		if message.Caption != "" {
			record[config.FieldRemarks] = message.Caption
			log.Printf("Added caption as remarks: %s", message.Caption)
		}

		// 追記失敗は抽出の成否を変えない。ユーザー向け契約は抽出品質であって
		// 保存の永続性ではない。
		if err := e.sheets.Append(ctx, record, config.SheetName, config.IncludeTimestamp); err != nil {
			log.Printf("Failed to save data to Google Sheets: %v", err)
			e.notifier.NotifyExtractionError(chatIDOf(message), "sheets_append", err.Error())
		} else {
			log.Printf("Data successfully saved to Google Sheets")
		}

		return model.ExtractionResult{
			Success: true,
			Message: formatRecord(record),
			RawData: record,
		}

	case OutcomeText:
		return model.ExtractionResult{Success: false, Message: config.MsgNotNamecard}

	default:
		return model.ExtractionResult{Success: false, Message: config.MsgUnreadable}
	}
}

// buildExtractionRequest はFieldSchemaからツールスキーマを生成してリクエストを組み立てる
func buildExtractionRequest(photoURL string) ResponsesRequest {
	properties := make(map[string]ToolProperty, len(config.FieldSchema))
	required := make([]string, 0, len(config.FieldSchema))
	for _, f := range config.FieldSchema {
		properties[f.Key] = ToolProperty{Type: "string", Description: f.Label}
		required = append(required, f.Key)
	}

	return ResponsesRequest{
		Model: config.OpenAI.Model,
		Input: []InputItem{
			{Role: "system", Content: extractionInstructions},
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "input_text", Text: extractionUserText},
					{Type: "input_image", ImageURL: photoURL},
				},
			},
		},
		Tools: []Tool{
			{
				Type:        "function",
				Name:        config.OpenAI.ToolName,
				Description: "Extract structured data from name card to be inserted into a CRM",
				Parameters: ToolParameters{
					Type:       "object",
					Properties: properties,
					Required:   required,
				},
			},
		},
		Store: false,
	}
}

// parseToolArguments はツール呼び出しの引数JSONをレコードに変換する。
// 不正なJSONはローカルエラーとして呼び出し元に伝搬する。
func parseToolArguments(arguments string) (model.ExtractedRecord, error) {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}

	var record model.ExtractedRecord
	if err := json.Unmarshal([]byte(arguments), &record); err != nil {
		return nil, fmt.Errorf("malformed tool arguments: %w", err)
	}
	return record, nil
}

// formatRecord は抽出結果をユーザー向けの表示文字列に整形する。
// FieldSchemaの宣言順にremarks以外を並べ、remarksは空行を挟んで最後に置く。
func formatRecord(record model.ExtractedRecord) string {
	var b strings.Builder
	b.WriteString(config.SuccessHeader)
	b.WriteString("\n\n")

	var remarksLabel string
	for _, f := range config.FieldSchema {
		if f.Key == config.FieldRemarks {
			remarksLabel = f.Label
			continue
		}
		if value := strings.TrimSpace(record[f.Key]); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", f.Label, value)
		}
	}

	if remarks := strings.TrimSpace(record[config.FieldRemarks]); remarks != "" {
		fmt.Fprintf(&b, "\n%s: %s\n", remarksLabel, remarks)
	}

	return b.String()
}

// chatIDOf は返信先のチャットIDを取得する（chat優先、なければfrom）
func chatIDOf(message *tgbotapi.Message) int64 {
	if message == nil {
		return 0
	}
	if message.Chat != nil {
		return message.Chat.ID
	}
	if message.From != nil {
		return message.From.ID
	}
	return 0
}
