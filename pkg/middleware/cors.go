package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS は任意のオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// Webhookトリガーやモバイルクライアントからの呼び出しを受けるため、
// オリジンを限定しない。OPTIONSプリフライトには200でボディなしの応答を返す。
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
