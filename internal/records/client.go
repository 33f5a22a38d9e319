package records

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/chatpush/pkg/httpclient"
)

// ErrNotFound は問い合わせ結果が0件だったことを表すセンチネルエラー。
// 依存先の障害（非2xx応答）とは区別して扱う。
var ErrNotFound = errors.New("record not found")

// Client はレコードストアへの読み取り専用クライアント。
type Client struct {
	// httpClient はサービスキーを付与したHTTPクライアント。
	httpClient *httpclient.Client
}

// New は新しいレコードストアクライアントを生成する。
// serviceKeyは行レベルセキュリティをバイパスするサービスロールキー。
func New(baseURL, serviceKey string) *Client {
	return &Client{
		httpClient: httpclient.New(baseURL).
			WithHeader("apikey", serviceKey).
			WithHeader("Authorization", "Bearer "+serviceKey),
	}
}

// Chat はチャットの2人の参加者を表す。参加者の順序に意味はない。
type Chat struct {
	// User1 は参加者Aのユーザー ID。
	User1 string
	// User2 は参加者Bのユーザー ID。
	User2 string
}

// OtherParticipant は送信者でない側の参加者を返す。
// User1が送信者ならUser2を、そうでなければUser1を返す。送信者が
// どちらの参加者とも一致しない場合の検証は行わない（上流データの不整合は
// 呼び出し側の送信者一致チェックで弾かれる）。
func (c *Chat) OtherParticipant(senderID string) string {
	if c.User1 == senderID {
		return c.User2
	}
	return c.User1
}

// chatRow はレコードストアのchats行。ID列は数値で返る環境もあるため
// any型で受けて文字列に正規化する。
type chatRow struct {
	User1 any `json:"user1"`
	User2 any `json:"user2"`
}

// Chat は指定IDのチャットを取得する。0件の場合はErrNotFoundを返す。
func (c *Client) Chat(ctx context.Context, chatID string) (*Chat, error) {
	path := "/rest/v1/chats?id=eq." + url.QueryEscape(chatID) + "&select=user1,user2"

	var rows []chatRow
	if err := c.httpClient.GetJSON(ctx, path, &rows); err != nil {
		return nil, fmt.Errorf("チャットの取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &Chat{
		User1: coerceString(rows[0].User1),
		User2: coerceString(rows[0].User2),
	}, nil
}

// Recipient は受信者の通知設定とデバイストークンを表す。
// 上流のスキーマが緩いため、両フィールドとも生のJSON値のまま保持し、
// 意味的な判定はアクセサに閉じ込める。
type Recipient struct {
	// FcmTokens はfcm_tokens列の生の値。配列でないこともある。
	FcmTokens any `json:"fcm_tokens"`
	// NotificationsEnabled はnotifications_enabled列の生の値。
	NotificationsEnabled any `json:"notifications_enabled"`
}

// Enabled は通知が有効かを返す。JSONのboolean trueと厳密に一致する場合のみ
// 有効。false・null・欠落・文字列・数値はすべて無効として扱う。
func (r *Recipient) Enabled() bool {
	return r.NotificationsEnabled == true
}

// ValidTokens はデバイストークンを空でない文字列に限定して返す。
// fcm_tokensが配列でない場合や、配列内の文字列以外の要素は黙って捨てる。
func (r *Recipient) ValidTokens() []string {
	raw, ok := r.FcmTokens.([]any)
	if !ok {
		return nil
	}
	tokens := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens
}

// Recipient は指定IDのユーザーの通知設定とデバイストークンを取得する。
// 0件の場合はErrNotFoundを返す。
func (c *Client) Recipient(ctx context.Context, userID string) (*Recipient, error) {
	path := "/rest/v1/users?id=eq." + url.QueryEscape(userID) + "&select=fcm_tokens,notifications_enabled"

	var rows []Recipient
	if err := c.httpClient.GetJSON(ctx, path, &rows); err != nil {
		return nil, fmt.Errorf("受信者の取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// UserName は指定IDのユーザーの表示名を取得する。前後の空白は取り除く。
// ユーザーが存在しない、または名前が空の場合はErrNotFoundを返す。
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	path := "/rest/v1/users?id=eq." + url.QueryEscape(userID) + "&select=name"

	var rows []struct {
		Name string `json:"name"`
	}
	if err := c.httpClient.GetJSON(ctx, path, &rows); err != nil {
		return "", fmt.Errorf("送信者名の取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return "", ErrNotFound
	}
	name := strings.TrimSpace(rows[0].Name)
	if name == "" {
		return "", ErrNotFound
	}
	return name, nil
}

// coerceString は緩い型のJSON値を文字列に正規化する。
// nilは空文字列、文字列はそのまま、それ以外（数値のID等）は文字列表現に変換する。
func coerceString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}
