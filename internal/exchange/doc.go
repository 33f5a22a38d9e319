// Package exchange はFirebaseのIDトークンをローカル署名のセッショントークンに
// 交換するサービスを提供する。
//
// 外部IdP（Firebase Auth）が発行したIDトークンのクレームを検査し、
// バックエンドの行レベルセキュリティが信頼できるHS256署名のJWTを発行する。
// これによりバックエンドは毎リクエストをIdPへ問い合わせずに済む。
package exchange
