// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// CORSプリフライト応答とパニックリカバリなど、
// 全サービスで共通して使用するミドルウェアを含む。
package middleware
