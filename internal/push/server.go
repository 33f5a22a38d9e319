package push

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/chatpush/internal/fcm"
	"github.com/nao1215/chatpush/internal/records"
	"github.com/nao1215/chatpush/pkg/middleware"
)

// 受信者解決の短絡理由。いずれも配信なしの成功（200）として応答される。
const (
	// reasonChatNotFound はチャットが存在しなかったことを表す。
	// メッセージ挿入直後のチャット削除等の競合で起こり得るため異常としない。
	reasonChatNotFound = "Chat not found"
	// reasonRecipientIsSender は解決した受信者が送信者自身か空だったことを表す。
	reasonRecipientIsSender = "Recipient is sender"
	// reasonRecipientNotFound は受信者のユーザーレコードが存在しなかったことを表す。
	reasonRecipientNotFound = "Recipient not found"
	// reasonNotificationsDisabled は受信者が通知を無効にしていることを表す。
	reasonNotificationsDisabled = "Notifications disabled"
	// reasonNoTokens は受信者に有効なデバイストークンがないことを表す。
	reasonNoTokens = "No fcm_tokens"
)

// Config はプッシュ配信サービスの設定。
// 各フィールドの存在検証は起動時には行わず、実際に必要になった時点で
// ハンドラが確認する（設定不備は該当リクエストの500として表面化する）。
type Config struct {
	// RecordStoreURL はレコードストアのベースURL。
	RecordStoreURL string
	// ServiceRoleKey はレコードストア読み取り用のサービスロールキー。
	ServiceRoleKey string
	// FCM はFirebase Cloud Messagingの資格情報。
	FCM fcm.Config
}

// LoadConfigFromEnv は環境変数から設定を読み込む。
func LoadConfigFromEnv() Config {
	return Config{
		RecordStoreURL: os.Getenv("SUPABASE_URL"),
		ServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		FCM: fcm.Config{
			ProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
			ClientEmail: os.Getenv("FIREBASE_CLIENT_EMAIL"),
			PrivateKey:  os.Getenv("FIREBASE_PRIVATE_KEY"),
		},
	}
}

// Server はプッシュ配信サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db は配信監査ログ用のSQLiteデータベース接続。
	db *sql.DB
	// config はサービス設定。
	config Config
	// records はレコードストアクライアント。
	records *records.Client
	// fcm はFCMクライアント。
	fcm *fcm.Client
}

// NewServer は新しいプッシュ配信サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", "/data/push.db?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	config := LoadConfigFromEnv()

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS())

	s := &Server{
		router:  router,
		port:    port,
		db:      sqlDB,
		config:  config,
		records: records.New(config.RecordStoreURL, config.ServiceRoleKey),
		fcm:     fcm.New(config.FCM),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// Webhookトリガーの受け口。POSTとOPTIONS（CORSミドルウェアが処理）以外は405を返す。
	s.router.HandleMethodNotAllowed = true
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	s.router.POST("/", s.handleWebhook())
	s.router.POST("/webhook", s.handleWebhook())

	// 配信監査ログの一覧取得
	s.router.GET("/deliveries", s.handleListDeliveries())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "push"})
	})
}

// webhookPayload はDatabase WebhookのINSERTペイロード。
// 上流のスキーマ変更に耐えるため、record内は緩い型のまま受ける。
type webhookPayload struct {
	// Type はイベント種別（INSERT等）。
	Type string `json:"type"`
	// Table は対象テーブル名。
	Table string `json:"table"`
	// Record は挿入された行。
	Record map[string]any `json:"record"`
}

// field はrecord内のフィールドを第一候補・第二候補のキー名で取り出し、
// 文字列に正規化して返す。
func (p *webhookPayload) field(key, altKey string) string {
	v, ok := p.Record[key]
	if !ok || v == nil {
		v = p.Record[altKey]
	}
	return ensureString(v)
}

// ensureString は緩い型のJSON値を文字列に正規化する。
// nilは空文字列、文字列はそのまま、それ以外（数値のID等）は文字列表現に変換する。
func ensureString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}

// handleWebhook はchat_messages挿入Webhookを処理するハンドラを返す。
// 受信者の解決・通知文の組み立て・FCMへのファンアウト送信までを1リクエストで行う。
func (s *Server) handleWebhook() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload webhookPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			log.Printf("Webhookボディの解析に失敗: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		chatID := payload.field("chat_id", "conversationId")
		senderID := payload.field("sender_id", "senderId")
		if chatID == "" || senderID == "" {
			log.Printf("record内にchat_idまたはsender_idがない")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing chat_id or sender_id"})
			return
		}

		if s.config.RecordStoreURL == "" || s.config.ServiceRoleKey == "" {
			log.Printf("SUPABASE_URLまたはSUPABASE_SERVICE_ROLE_KEYが未設定")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration"})
			return
		}

		ctx := c.Request.Context()

		// ステップ1: チャットを取得し、もう一方の参加者を受信者として解決する
		chat, err := s.records.Chat(ctx, chatID)
		if errors.Is(err, records.ErrNotFound) {
			log.Printf("チャットが見つからない: chat=%s", chatID)
			c.JSON(http.StatusOK, gin.H{"ok": true, "reason": reasonChatNotFound})
			return
		}
		if err != nil {
			log.Printf("チャット取得エラー: chat=%s, error=%v", chatID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chat"})
			return
		}

		recipientID := chat.OtherParticipant(senderID)
		if recipientID == senderID || recipientID == "" {
			log.Printf("受信者が送信者自身または空のためスキップ: chat=%s", chatID)
			c.JSON(http.StatusOK, gin.H{"ok": true, "reason": reasonRecipientIsSender})
			return
		}

		// ステップ2: 受信者の通知設定とデバイストークンを取得する
		recipient, err := s.records.Recipient(ctx, recipientID)
		if errors.Is(err, records.ErrNotFound) {
			log.Printf("受信者が見つからない: recipient=%s", recipientID)
			c.JSON(http.StatusOK, gin.H{"ok": true, "reason": reasonRecipientNotFound})
			return
		}
		if err != nil {
			log.Printf("受信者取得エラー: recipient=%s, error=%v", recipientID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recipient"})
			return
		}

		if !recipient.Enabled() {
			log.Printf("受信者の通知が無効: recipient=%s", recipientID)
			c.JSON(http.StatusOK, gin.H{"ok": true, "reason": reasonNotificationsDisabled})
			return
		}

		tokens := recipient.ValidTokens()
		if len(tokens) == 0 {
			log.Printf("受信者に有効なデバイストークンがない: recipient=%s", recipientID)
			c.JSON(http.StatusOK, gin.H{"ok": true, "reason": reasonNoTokens})
			return
		}

		// ステップ3: 通知文を組み立てる。送信者名の取得はベストエフォートで、
		// 失敗しても既定の表示名で配信を続行する。
		senderName, err := s.records.UserName(ctx, senderID)
		if err != nil {
			senderName = defaultSenderName
		}
		title := notificationTitle
		body := notificationBody(senderName, ensureString(payload.Record["content"]))

		// ステップ4: アクセストークンを取得してファンアウト送信する
		if !s.fcm.Configured() {
			log.Printf("FIREBASE_PROJECT_ID、FIREBASE_CLIENT_EMAIL、FIREBASE_PRIVATE_KEYのいずれかが未設定")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "FCM not configured"})
			return
		}

		accessToken, err := s.fcm.AccessToken(ctx)
		if err != nil {
			log.Printf("アクセストークン取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// 個々のトークンの送信失敗は記録するだけで、残りの送信は継続する。
		sent := 0
		for _, deviceToken := range tokens {
			if err := s.fcm.Send(ctx, accessToken, deviceToken, title, body, chatID); err != nil {
				log.Printf("FCM送信エラー: chat=%s, error=%v", chatID, err)
				continue
			}
			sent++
		}
		log.Printf("FCM送信完了: chat=%s, sent=%d/%d", chatID, sent, len(tokens))

		s.recordDelivery(c, chatID, recipientID, sent, len(tokens))

		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"sent":    sent,
			"total":   len(tokens),
			"chat_id": chatID,
		})
	}
}

// recordDelivery は配信結果を監査ログに記録する。
// 記録の失敗は配信結果に影響させず、ログ出力のみ行う。
func (s *Server) recordDelivery(c *gin.Context, chatID, recipientID string, sent, total int) {
	_, err := s.db.ExecContext(c.Request.Context(),
		"INSERT INTO push_deliveries (id, chat_id, recipient_id, sent, total) VALUES (?, ?, ?, ?, ?)",
		uuid.New().String(), chatID, recipientID, sent, total,
	)
	if err != nil {
		log.Printf("配信記録の保存に失敗: chat=%s, error=%v", chatID, err)
	}
}

// deliveryResponse は配信記録のJSONレスポンス構造。
type deliveryResponse struct {
	// ID は配信記録の一意識別子。
	ID string `json:"id"`
	// ChatID は対象チャットのID。
	ChatID string `json:"chat_id"`
	// RecipientID は通知先ユーザーのID。
	RecipientID string `json:"recipient_id"`
	// Sent は送信に成功したトークン数。
	Sent int `json:"sent"`
	// Total は送信を試行したトークン数。
	Total int `json:"total"`
	// CreatedAt は配信記録の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// handleListDeliveries は直近の配信記録を返すハンドラを返す。
func (s *Server) handleListDeliveries() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := s.db.QueryContext(c.Request.Context(),
			"SELECT id, chat_id, recipient_id, sent, total, created_at FROM push_deliveries ORDER BY created_at DESC LIMIT 50")
		if err != nil {
			log.Printf("配信記録の取得に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list deliveries"})
			return
		}
		defer rows.Close()

		deliveries := make([]deliveryResponse, 0)
		for rows.Next() {
			var d deliveryResponse
			var createdAt time.Time
			if err := rows.Scan(&d.ID, &d.ChatID, &d.RecipientID, &d.Sent, &d.Total, &createdAt); err != nil {
				log.Printf("配信記録の読み取りに失敗: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list deliveries"})
				return
			}
			d.CreatedAt = createdAt.Format(time.RFC3339)
			deliveries = append(deliveries, d)
		}
		if err := rows.Err(); err != nil {
			log.Printf("配信記録の走査に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list deliveries"})
			return
		}

		c.JSON(http.StatusOK, deliveries)
	}
}
