// プッシュ配信サービスのエントリポイント。
// chat_messagesへのINSERTをトリガーとするDatabase Webhookを受け、
// 受信者を解決してFCM v1へプッシュ通知を配信する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/chatpush/internal/push"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}

	server, err := push.NewServer(port)
	if err != nil {
		log.Fatalf("プッシュ配信サーバーの初期化に失敗: %v", err)
	}

	log.Printf("プッシュ配信サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("プッシュ配信サービスの起動に失敗: %v", err)
	}
}
