package fcm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/chatpush/pkg/httpclient"
	"github.com/nao1215/chatpush/pkg/token"
)

const (
	// defaultTokenURL はGoogleのOAuth2トークンエンドポイント。
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	// defaultEndpoint はFCM v1 APIのエンドポイント。
	defaultEndpoint = "https://fcm.googleapis.com"
	// messagingScope はFCM送信APIのOAuth2スコープ。
	messagingScope = "https://www.googleapis.com/auth/firebase.messaging"
	// grantTypeJWTBearer はサービスアカウントのアサーション交換に使うグラント種別。
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	// assertionLifetime はアサーションの有効期間。
	assertionLifetime = time.Hour
)

// Config はFCMクライアントの設定。
type Config struct {
	// ProjectID はFirebaseプロジェクトID。
	ProjectID string
	// ClientEmail はサービスアカウントのメールアドレス（iss/subクレーム）。
	ClientEmail string
	// PrivateKey はサービスアカウントのPEM形式RSA秘密鍵。
	PrivateKey string
	// TokenURL はOAuth2トークンエンドポイント。空の場合はGoogleの本番URL。
	TokenURL string
	// Endpoint はFCM APIのベースURL。空の場合は本番URL。
	Endpoint string
}

// Client はFCM v1 APIのクライアント。
type Client struct {
	// config はクライアント設定。
	config Config
	// tokenClient はトークンエンドポイントへのHTTPクライアント。
	tokenClient *httpclient.Client
	// sendClient はFCM APIへのHTTPクライアント。
	sendClient *httpclient.Client
}

// New は新しいFCMクライアントを生成する。
// 設定値の存在検証は行わない。資格情報の欠落は実際に使用される時点で
// Configured/AccessTokenの呼び出し側が検出する。
func New(config Config) *Client {
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	return &Client{
		config:      config,
		tokenClient: httpclient.New(config.TokenURL),
		sendClient:  httpclient.New(config.Endpoint),
	}
}

// Configured は送信に必要な資格情報がすべて設定されているかを返す。
func (c *Client) Configured() bool {
	return c.config.ProjectID != "" && c.config.ClientEmail != "" && c.config.PrivateKey != ""
}

// AccessToken はサービスアカウントのアサーションを署名し、OAuth2トークン
// エンドポイントで短命のアクセストークンに交換して返す。
// 秘密鍵の解析は呼び出しの度に行い、鍵の不備もこの時点のエラーとして返す。
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	signer, err := token.NewRS256FromPEM(c.config.PrivateKey)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.config.ClientEmail,
		"sub":   c.config.ClientEmail,
		"aud":   c.config.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
		"scope": messagingScope,
	}
	assertion, err := signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("アサーションの署名に失敗: %w", err)
	}

	form := url.Values{
		"grant_type": {grantTypeJWTBearer},
		"assertion":  {assertion},
	}
	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.tokenClient.PostForm(ctx, "", form, &result); err != nil {
		return "", fmt.Errorf("OAuth2トークン交換に失敗: %w", err)
	}
	if result.AccessToken == "" {
		return "", errors.New("OAuth2レスポンスにaccess_tokenが含まれていない")
	}
	return result.AccessToken, nil
}

// message はFCM v1の送信エンベロープ。
type message struct {
	// Token は送信先のデバイストークン。
	Token string `json:"token"`
	// Notification は表示用の通知本体。
	Notification notification `json:"notification"`
	// Data はクライアントアプリに渡す付加データ。
	Data map[string]string `json:"data"`
}

// notification は通知のタイトルと本文。
type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send は1つのデバイストークンへ通知を送信する。
// 非2xx応答はプロバイダのエラーボディを含むエラーとして返す。
func (c *Client) Send(ctx context.Context, accessToken, deviceToken, title, body, chatID string) error {
	path := "/v1/projects/" + c.config.ProjectID + "/messages:send"
	payload := map[string]message{
		"message": {
			Token:        deviceToken,
			Notification: notification{Title: title, Body: body},
			Data:         map[string]string{"chat_id": chatID},
		},
	}

	client := c.sendClient.WithHeader("Authorization", "Bearer "+accessToken)
	if err := client.PostJSON(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("FCM送信に失敗: %w", err)
	}
	return nil
}
