// トークン交換サービスのエントリポイント。
// Firebase IDトークンを検査し、バックエンドが信頼するHS256署名の
// セッショントークンを発行する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/chatpush/internal/exchange"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8091"
	}

	server := exchange.NewServer(port)

	log.Printf("トークン交換サービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("トークン交換サービスの起動に失敗: %v", err)
	}
}
