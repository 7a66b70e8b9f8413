package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteTimeFormat = "2006-01-02 15:04:05.000"

// 对话角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn 一轮对话
type Turn struct {
	RunID     string
	Role      string
	Content   string
	Marks     string // 回复中引用的标记, 如 "3,7"
	CreatedAt time.Time
}

// Transcript 基于 SQLite 的对话记录
type Transcript struct {
	db *sql.DB
}

// OpenTranscript 打开 (或创建) path 处的对话记录库
func OpenTranscript(path string) (*Transcript, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 单连接, 避免 :memory: 库在多个连接间不共享
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return &Transcript{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		marks TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_turns_run_id ON turns(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Close 关闭数据库
func (t *Transcript) Close() error {
	return t.db.Close()
}

// Append 追加一轮对话, CreatedAt 为空时使用当前时间
func (t *Transcript) Append(ctx context.Context, turn Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO turns (run_id, role, content, marks, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, turn.RunID, turn.Role, turn.Content, turn.Marks, turn.CreatedAt.UTC().Format(sqliteTimeFormat))
	if err != nil {
		return fmt.Errorf("写入对话失败: %w", err)
	}
	return nil
}

// List 按时间顺序列出某次标注的全部对话
func (t *Transcript) List(ctx context.Context, runID string) ([]Turn, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT run_id, role, content, marks, created_at
		FROM turns
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("查询对话失败: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			turn      Turn
			createdAt string
		)
		if err := rows.Scan(&turn.RunID, &turn.Role, &turn.Content, &turn.Marks, &createdAt); err != nil {
			return nil, fmt.Errorf("读取对话失败: %w", err)
		}
		if ts, err := parseTime(createdAt); err == nil {
			turn.CreatedAt = ts
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历对话失败: %w", err)
	}
	return turns, nil
}

// parseTime 兼容驱动返回的两种时间格式
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(sqliteTimeFormat, s); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
