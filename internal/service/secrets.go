package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/wentilabs/wenti-namecard-agent/internal/config"
)

// SecretResolver はシークレット取得の抽象化。
// ローカル開発では環境変数、デプロイ環境ではSecret Managerを使う。
type SecretResolver interface {
	Get(ctx context.Context, name string) (string, error)
}

// NewSecretResolver はRUN_MODEに応じたリゾルバを返す
func NewSecretResolver(ctx context.Context) SecretResolver {
	if config.IsLocal() {
		log.Printf("Secret resolver: environment variables (local mode)")
		return &EnvResolver{}
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		// フォールバック: 環境変数のみ
		log.Printf("Secret Manager client creation failed: %v, falling back to env vars", err)
		return &EnvResolver{}
	}

	log.Printf("Secret resolver: Secret Manager (project: %s)", config.GCPProjectID)
	return &SecretManagerResolver{client: client}
}

// EnvResolver は環境変数からシークレットを取得する
type EnvResolver struct{}

// Get は環境変数からシークレットを取得する。
// ローカルモードではLOCAL_プレフィックス付きの変数を優先する。
func (r *EnvResolver) Get(_ context.Context, name string) (string, error) {
	if config.IsLocal() {
		if v := strings.TrimSpace(os.Getenv("LOCAL_" + name)); v != "" {
			return v, nil
		}
	}

	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("%s not found in environment variables", name)
	}
	return v, nil
}

// SecretManagerResolver はSecret Managerからシークレットを取得する
type SecretManagerResolver struct {
	client *secretmanager.Client
}

// Get はSecret Managerからシークレットを取得し、失敗時は環境変数にフォールバックする
func (r *SecretManagerResolver) Get(ctx context.Context, name string) (string, error) {
	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", config.GCPProjectID, name)

	result, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		log.Printf("Secret Manager access failed for %s: %v, falling back to env var", name, err)
		return (&EnvResolver{}).Get(ctx, name)
	}

	return strings.TrimSpace(string(result.Payload.Data)), nil
}

// Close はSecret Managerクライアントをクローズする
func (r *SecretManagerResolver) Close() error {
	return r.client.Close()
}
