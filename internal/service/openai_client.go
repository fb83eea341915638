package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wentilabs/wenti-namecard-agent/internal/config"
)

// ResponsesCaller はOpenAI Responses API呼び出しの抽象化
type ResponsesCaller interface {
	CreateResponse(ctx context.Context, req ResponsesRequest) (*ResponsesResponse, error)
}

// ResponsesRequest はResponses APIへのリクエスト
type ResponsesRequest struct {
	Model string      `json:"model"`
	Input []InputItem `json:"input"`
	Tools []Tool      `json:"tools,omitempty"`
	Store bool        `json:"store"`
}

// InputItem は入力メッセージ。Contentは文字列または[]ContentPart。
type InputItem struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart はマルチモーダル入力の1要素
type ContentPart struct {
	Type     string `json:"type"` // input_text | input_image
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Tool はモデルに公開するfunctionツール定義
type Tool struct {
	Type        string         `json:"type"` // "function"
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters はツール引数のJSONスキーマ
type ToolParameters struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required"`
}

// ToolProperty は引数スキーマの1プロパティ
type ToolProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ResponsesResponse はResponses APIのレスポンス
type ResponsesResponse struct {
	ID      string        `json:"id"`
	Status  string        `json:"status"`
	Output  []OutputItem  `json:"output"`
	Content []ContentItem `json:"content"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// OutputItem はモデル出力の1要素（ツール呼び出し等）
type OutputItem struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ContentItem はモデルがテキストで応答した場合の内容
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutcomeKind はモデル応答の解釈結果の種別
type OutcomeKind int

const (
	// OutcomeIncomplete は未完了またはツール呼び出しもテキストもない応答
	OutcomeIncomplete OutcomeKind = iota
	// OutcomeToolCall は完了かつ先頭出力がツール呼び出しの応答
	OutcomeToolCall
	// OutcomeText は完了したがツール呼び出しせずテキストを返した応答
	OutcomeText
)

// Outcome はアドホックな存在チェックを排した、応答のタグ付き解釈
type Outcome struct {
	Kind      OutcomeKind
	ToolName  string
	Arguments string
	Text      string
}

// Outcome はレスポンスをタグ付きバリアントに分類する
func (r *ResponsesResponse) Outcome() Outcome {
	if r == nil || r.Status != "completed" {
		return Outcome{Kind: OutcomeIncomplete}
	}

	if len(r.Output) > 0 && r.Output[0].Name != "" {
		return Outcome{
			Kind:      OutcomeToolCall,
			ToolName:  r.Output[0].Name,
			Arguments: r.Output[0].Arguments,
		}
	}

	for _, c := range r.Content {
		if strings.TrimSpace(c.Text) != "" {
			return Outcome{Kind: OutcomeText, Text: c.Text}
		}
	}

	return Outcome{Kind: OutcomeIncomplete}
}

// OpenAIClient はOpenAI Responses APIクライアント。
// APIキーは初回呼び出し時に解決してメモ化する。
type OpenAIClient struct {
	resolver   SecretResolver
	httpClient *http.Client

	mu     sync.Mutex
	apiKey string
}

// NewOpenAIClient は新しいOpenAIClientを作成
func NewOpenAIClient(resolver SecretResolver) *OpenAIClient {
	return &OpenAIClient{
		resolver: resolver,
		httpClient: &http.Client{
			Timeout: time.Duration(config.API.OpenAITimeoutMS) * time.Millisecond,
		},
	}
}

// key はメモ化されたAPIキーを返す
func (c *OpenAIClient) key(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey != "" {
		return c.apiKey, nil
	}

	apiKey, err := c.resolver.Get(ctx, config.SecretOpenAIAPIKey)
	if err != nil {
		return "", fmt.Errorf("failed to resolve OpenAI API key: %w", err)
	}
	c.apiKey = apiKey
	return c.apiKey, nil
}

// CreateResponse はResponses APIを呼び出す
func (c *OpenAIClient) CreateResponse(ctx context.Context, reqBody ResponsesRequest) (*ResponsesResponse, error) {
	apiKey, err := c.key(ctx)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(config.OpenAI.BaseURL, "/") + "/v1/responses"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("OpenAI API error: status=%d body=%s", resp.StatusCode, truncate(string(body), 512))
		return nil, fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	var parsed ResponsesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if parsed.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s", parsed.Error.Message)
	}

	return &parsed, nil
}
