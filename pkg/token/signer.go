package token

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Signer は署名方式と鍵の組でパラメータ化されたコンパクトトークンの署名器。
// 署名方式（HS256/RS256）の違いは生成関数に閉じ込め、Signの呼び出し側は
// 方式を意識しない。
type Signer struct {
	// method はJWTの署名アルゴリズム。
	method jwt.SigningMethod
	// key は署名鍵。HS256では[]byte、RS256では*rsa.PrivateKey。
	key any
}

// NewHS256 は共有秘密鍵でHS256署名を行うSignerを生成する。
func NewHS256(secret string) *Signer {
	return &Signer{
		method: jwt.SigningMethodHS256,
		key:    []byte(secret),
	}
}

// NewRS256FromPEM はPEM形式のRSA秘密鍵でRS256署名を行うSignerを生成する。
// 環境変数経由の鍵に含まれるリテラルの "\n" エスケープは実改行に正規化する。
// PKCS#1・PKCS#8のどちらの形式も受け付ける。
func NewRS256FromPEM(pemKey string) (*Signer, error) {
	normalized := strings.ReplaceAll(pemKey, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(normalized))
	if err != nil {
		return nil, fmt.Errorf("RSA秘密鍵の解析に失敗: %w", err)
	}
	return &Signer{
		method: jwt.SigningMethodRS256,
		key:    key,
	}, nil
}

// Sign はクレームを署名し、コンパクト形式（base64url 3セグメント）のトークンを返す。
func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// DecodeUnverified はトークンの署名を検証せずにクレームを読み取る。
// 外部IdPが発行したトークンの中身を検査する用途に使う。呼び出し側が
// iss/aud/exp等を自ら検証する責任を持つ。
func DecodeUnverified(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("トークンのデコードに失敗: %w", err)
	}
	return claims, nil
}
