// Package tasklog 记录每次任务调用的结果，供历史查询接口使用。
// 行数有上限，超出后淘汰最旧记录。
package tasklog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"imgchat/internal/logger"
	"imgchat/internal/types"

	_ "modernc.org/sqlite"
)

// Record 是一条任务日志。
type Record struct {
	ID        int64      `json:"id"`
	TraceID   string     `json:"trace_id"`
	Timestamp int64      `json:"ts"`
	Mode      types.Mode `json:"mode"`
	Provider  string     `json:"provider"`
	Model     string     `json:"model"`
	Requested int        `json:"requested"`
	Received  int        `json:"received"`
	Success   bool       `json:"success"`
	Auto      bool       `json:"auto"`
	Error     string     `json:"error,omitempty"`
	Images    []string   `json:"images,omitempty"`
}

// Store 管理任务日志库。
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	limit int
}

const defaultLimit = 500

// Open 打开（必要时创建）任务日志库。limit 是保留的最大行数。
func Open(path string, limit int) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("tasklog: 存储路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("tasklog: 创建目录失败: %w", err)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS task_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    trace_id TEXT NOT NULL,
    ts INTEGER NOT NULL,
    mode TEXT NOT NULL,
    provider TEXT NOT NULL,
    model TEXT NOT NULL,
    requested INTEGER NOT NULL,
    received INTEGER NOT NULL,
    success INTEGER NOT NULL,
    auto INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    images TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_task_log_ts ON task_log(ts DESC);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tasklog: 初始化表失败: %w", err)
	}
	return &Store{db: db, limit: limit}, nil
}

// Close 关闭底层连接。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append 写入一条记录并裁剪超限的旧行。
func (s *Store) Append(rec Record) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	images, err := json.Marshal(rec.Images)
	if err != nil {
		images = []byte("[]")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO task_log (trace_id, ts, mode, provider, model, requested, received, success, auto, error, images)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Timestamp, string(rec.Mode), rec.Provider, rec.Model,
		rec.Requested, rec.Received, boolToInt(rec.Success), boolToInt(rec.Auto), rec.Error, string(images),
	)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`DELETE FROM task_log WHERE id NOT IN (SELECT id FROM task_log ORDER BY id DESC LIMIT ?)`,
		s.limit,
	); err != nil {
		logger.Warnf("tasklog 裁剪失败: %v", err)
	}
	return nil
}

// Recent 按时间倒序返回最近 n 条记录。
func (s *Store) Recent(n int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if n <= 0 || n > s.limit {
		n = s.limit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT id, trace_id, ts, mode, provider, model, requested, received, success, auto, error, images
		 FROM task_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var mode, images string
		var success, auto int
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Timestamp, &mode, &rec.Provider, &rec.Model,
			&rec.Requested, &rec.Received, &success, &auto, &rec.Error, &images); err != nil {
			return nil, err
		}
		rec.Mode = types.Mode(mode)
		rec.Success = success != 0
		rec.Auto = auto != 0
		if err := json.Unmarshal([]byte(images), &rec.Images); err != nil {
			rec.Images = nil
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
