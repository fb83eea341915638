package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/wentilabs/wenti-namecard-agent/internal/config"
	"github.com/wentilabs/wenti-namecard-agent/internal/model"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// RowAppender はスプレッドシートへの行追記の抽象化
type RowAppender interface {
	Append(ctx context.Context, record model.ExtractedRecord, sheetName string, includeTimestamp bool) error
}

// SheetsClient はGoogle Sheets APIクライアント。
// サービスアカウントのJWT認証でハンドルを遅延構築し、以降は再利用する。
type SheetsClient struct {
	resolver SecretResolver

	mu            sync.Mutex
	service       *sheets.Service
	spreadsheetID string
}

// NewSheetsClient は新しいSheetsClientを作成
func NewSheetsClient(resolver SecretResolver) *SheetsClient {
	return &SheetsClient{resolver: resolver}
}

// api はメモ化されたSheetsサービスとスプレッドシートIDを返す
func (c *SheetsClient) api(ctx context.Context) (*sheets.Service, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.service != nil {
		return c.service, c.spreadsheetID, nil
	}

	spreadsheetID, err := c.resolver.Get(ctx, config.SecretSheetsID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve spreadsheet id: %w", err)
	}

	email, err := c.resolver.Get(ctx, config.SecretServiceAccountEmail)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve service account email: %w", err)
	}

	privateKey, err := c.resolver.Get(ctx, config.SecretServiceAccountKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve service account key: %w", err)
	}

	// 環境変数経由の鍵は改行がエスケープされていることがある
	conf := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(strings.ReplaceAll(privateKey, `\n`, "\n")),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}

	service, err := sheets.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create sheets service: %w", err)
	}

	c.service = service
	c.spreadsheetID = spreadsheetID
	return c.service, c.spreadsheetID, nil
}

// Headers は対象シートの1行目（ヘッダー行）を取得する。
// 列の追加・並び替えを再デプロイなしで反映するため、毎回読み直す。
func (c *SheetsClient) Headers(ctx context.Context, sheetName string) ([]string, error) {
	service, spreadsheetID, err := c.api(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(config.API.SheetsTimeoutMS)*time.Millisecond)
	defer cancel()

	resp, err := service.Spreadsheets.Values.
		Get(spreadsheetID, sheetName+"!1:1").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet headers: %w", err)
	}

	if len(resp.Values) == 0 {
		return nil, nil
	}

	headers := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		headers = append(headers, fmt.Sprintf("%v", cell))
	}
	return headers, nil
}

// Append はレコードをヘッダー行に合わせた1行としてシートに追記する
func (c *SheetsClient) Append(ctx context.Context, record model.ExtractedRecord, sheetName string, includeTimestamp bool) error {
	service, spreadsheetID, err := c.api(ctx)
	if err != nil {
		return err
	}

	headers, err := c.Headers(ctx, sheetName)
	if err != nil {
		return err
	}

	row, err := rowForHeaders(headers, record, includeTimestamp, time.Now().UTC())
	if err != nil {
		return err
	}

	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(config.API.SheetsTimeoutMS)*time.Millisecond)
	defer cancel()

	_, err = service.Spreadsheets.Values.
		Append(spreadsheetID, sheetName, &sheets.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row to sheet: %w", err)
	}

	return nil
}

var whitespaceRuns = regexp.MustCompile(`\s+`)

// headerKey はヘッダーセルの文言をレコードの参照キーに正規化する
func headerKey(header string) string {
	return whitespaceRuns.ReplaceAllString(strings.ToLower(strings.TrimSpace(header)), "_")
}

// rowForHeaders はヘッダー行を検証して追記用の行を返す。
// ヘッダーが空の場合は追記できないためエラーとする。
func rowForHeaders(headers []string, record model.ExtractedRecord, includeTimestamp bool, now time.Time) ([]string, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("no headers found in the sheet")
	}
	return buildRow(headers, record, includeTimestamp, now), nil
}

// buildRow はヘッダー行と1:1に対応する行データを構築する。
// 先頭列はincludeTimestamp時にISO-8601タイムスタンプとなり、
// 電話系の列は表計算の数値自動変換を防ぐためアポストロフィを前置する。
func buildRow(headers []string, record model.ExtractedRecord, includeTimestamp bool, now time.Time) []string {
	row := make([]string, len(headers))
	for i, header := range headers {
		if i == 0 && includeTimestamp {
			row[i] = now.Format(time.RFC3339)
			continue
		}

		key := headerKey(header)
		value := record[key]

		if config.PhoneLikeKeys[key] && value != "" {
			row[i] = "'" + value
			continue
		}

		row[i] = value
	}
	return row
}
