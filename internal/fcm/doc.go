// Package fcm はFirebase Cloud Messaging v1 APIへのプッシュ送信を提供する。
//
// サービスアカウントのRS256署名付きアサーションをOAuth2のJWT-bearerグラントで
// アクセストークンに交換し、そのトークンでメッセージを送信する。
// アクセストークンはパイプライン1回分の使い捨てで、キャッシュしない。
package fcm
