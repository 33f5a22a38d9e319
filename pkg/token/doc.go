// Package token はコンパクト形式（header.payload.signature）の署名付きトークンを
// 生成・検査するユーティリティを提供する。
//
// 署名方式はSignerの生成時に決まる。セッショントークンには共有秘密鍵による
// HS256を、サービスアカウントのアサーションにはRSA秘密鍵によるRS256を使用する。
// 外部IdPが発行したトークンのペイロードを署名検証なしで読み取るための
// DecodeUnverifiedも提供する。
package token
