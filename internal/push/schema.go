package push

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。配信結果の監査ログを保持する。
const schema = `
CREATE TABLE IF NOT EXISTS push_deliveries (
    -- 配信記録の一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 対象チャットのID
    chat_id TEXT NOT NULL,
    -- 通知先ユーザーのID
    recipient_id TEXT NOT NULL,
    -- 送信に成功したトークン数
    sent INTEGER NOT NULL,
    -- 送信を試行したトークン数
    total INTEGER NOT NULL,
    -- 配信記録の作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- チャットIDでの検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_push_deliveries_chat_id
    ON push_deliveries(chat_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
