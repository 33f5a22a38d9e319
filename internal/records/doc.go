// Package records はレコードストア（PostgREST互換API）への参照クエリを提供する。
//
// チャットの参加者、受信者の通知設定とデバイストークン、送信者の表示名を
// サービスキー認証で読み取る。このパイプラインからレコードを書き換えることはない。
package records
