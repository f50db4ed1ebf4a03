// Package prefs 持久化用户偏好：表单控件值、provider→model 选择、
// 以及按 provider 保存的 API Key。对应浏览器端的 localStorage 镜像，
// 语义是尽力而为的缓存：读写失败降级为空值加一条警告，会话内的
// 状态对象才是权威数据。
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	kindSettings   = "settings"
	kindModelPrefs = "model_prefs"
)

// credentialModel 每个 provider 一行。
type credentialModel struct {
	Provider string `gorm:"primaryKey;column:provider"`
	APIKey   string `gorm:"column:api_key"`
}

func (credentialModel) TableName() string { return "credentials" }

// prefBlobModel 把一整类偏好存成一行 JSON（settings 表单快照、模型选择表）。
type prefBlobModel struct {
	Kind string         `gorm:"primaryKey;column:kind"`
	Data datatypes.JSON `gorm:"column:data"`
}

func (prefBlobModel) TableName() string { return "pref_blobs" }

// Store 是 SQLite 持久化偏好存储。
type Store struct {
	db *gorm.DB
}

// Open 打开（必要时创建）偏好库。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("prefs: 存储路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prefs: 创建目录失败: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&credentialModel{}, &prefBlobModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close 关闭底层连接。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) loadBlob(kind string) (map[string]string, error) {
	var row prefBlobModel
	err := s.db.Where("kind = ?", kind).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) saveBlob(kind string, m map[string]string) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	row := prefBlobModel{Kind: kind, Data: raw}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(&row).Error
}

// Settings 返回表单控件值快照。
func (s *Store) Settings() (map[string]string, error) {
	return s.loadBlob(kindSettings)
}

// SaveSetting 写入单个控件值（读-改-写整行 JSON，偏好写入频率很低）。
func (s *Store) SaveSetting(key, value string) error {
	m, err := s.loadBlob(kindSettings)
	if err != nil {
		return err
	}
	m[key] = value
	return s.saveBlob(kindSettings, m)
}

// ModelPrefs 返回 provider→上次选择的模型。
func (s *Store) ModelPrefs() (map[string]string, error) {
	return s.loadBlob(kindModelPrefs)
}

// SaveModelPref 记录某 provider 最近一次选择的模型。
func (s *Store) SaveModelPref(provider, model string) error {
	m, err := s.loadBlob(kindModelPrefs)
	if err != nil {
		return err
	}
	m[provider] = model
	return s.saveBlob(kindModelPrefs, m)
}

// Credentials 返回 provider→API Key。
func (s *Store) Credentials() (map[string]string, error) {
	var rows []credentialModel
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Provider] = r.APIKey
	}
	return out, nil
}

// SaveCredential 保存或覆盖某 provider 的 API Key。
func (s *Store) SaveCredential(provider, apiKey string) error {
	row := credentialModel{Provider: provider, APIKey: apiKey}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"api_key"}),
	}).Create(&row).Error
}

// DeleteCredential 清除某 provider 的 API Key。
func (s *Store) DeleteCredential(provider string) error {
	return s.db.Where("provider = ?", provider).Delete(&credentialModel{}).Error
}
