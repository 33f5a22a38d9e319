package push

import "strings"

const (
	// notificationTitle は通知の固定タイトル。
	notificationTitle = "New Message"
	// previewMaxRunes はメッセージプレビューの最大文字数。
	previewMaxRunes = 80
	// defaultPreview は本文が空の場合に使用する既定のプレビュー文。
	defaultPreview = "New message"
	// defaultSenderName は送信者名が取得できない場合の既定の表示名。
	defaultSenderName = "Someone"
)

// messagePreview はメッセージ本文から通知用のプレビュー文を生成する。
// 前後の空白を除去し、80文字に切り詰める。結果が空の場合は既定文を返す。
func messagePreview(content string) string {
	preview := strings.TrimSpace(content)
	if runes := []rune(preview); len(runes) > previewMaxRunes {
		preview = string(runes[:previewMaxRunes])
	}
	if preview == "" {
		return defaultPreview
	}
	return preview
}

// notificationBody は送信者の表示名とプレビューから通知本文を組み立てる。
func notificationBody(senderName, content string) string {
	if senderName == "" {
		senderName = defaultSenderName
	}
	return senderName + ": " + messagePreview(content)
}
