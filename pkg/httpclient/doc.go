// Package httpclient は外部サービスとのHTTP通信を行うクライアントを提供する。
//
// レコードストアへの参照クエリ、OAuth2トークンエンドポイントとの交換、
// メッセージングプロバイダへの送信など、外部依存との通信パターンを統一する。
package httpclient
