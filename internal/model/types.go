package model

// ExtractedRecord は抽出フィールドキー → 値のマッピング。
// 欠損キーは空欄として扱う（エラーにはしない）。
type ExtractedRecord map[string]string

// ExtractionResult は抽出パイプラインの結果
type ExtractionResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	RawData ExtractedRecord `json:"rawData,omitempty"`
	Err     string          `json:"error,omitempty"`
}

// AppendResult はスプレッドシート追記の結果
type AppendResult struct {
	Success bool   `json:"success"`
	Err     string `json:"error,omitempty"`
}
