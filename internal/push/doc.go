// Package push はチャットメッセージ挿入をトリガーとするプッシュ通知配信サービスを提供する。
//
// Database WebhookのPOSTを受け、チャットの参加者から受信者を解決し、
// 通知設定とデバイストークンを確認した上でFCM v1へファンアウト送信する。
// 受信者が配信対象外である場合（チャット削除・通知無効・トークンなし等）は
// エラーではなく配信なしの成功として扱う。
package push
