package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"imgchat/internal/logger"
)

// ConfigFetcher 拉取后端配置接口的原始响应。由 backend.Client 实现。
type ConfigFetcher interface {
	FetchConfig(ctx context.Context) ([]byte, error)
}

// Store 持有当前会话的能力表。
// 表只在 Load 时整体替换；并发读通过快照返回，不暴露内部引用给写路径。
type Store struct {
	mu            sync.RWMutex
	table         Table
	usingFallback bool
	loaded        bool
}

// LoadResult 描述一次配置加载的结果。
type LoadResult struct {
	Success       bool
	UsingFallback bool
}

func NewStore() *Store {
	return &Store{}
}

// Load 从后端拉取能力表，单次尝试，不重试。
// 任何失败（网络、success=false、结构或不变量校验不通过）都退回内置表，
// 配置失败永远不是致命错误，调用方只需提示一条非阻塞警告。
func (s *Store) Load(ctx context.Context, fetcher ConfigFetcher) LoadResult {
	table, err := fetchTable(ctx, fetcher)
	if err != nil {
		logger.Warnf("加载后端配置失败，使用内置配置: %v", err)
		s.replace(fallbackTable(), true)
		return LoadResult{Success: true, UsingFallback: true}
	}
	s.replace(table, false)
	logger.Infof("后端配置加载成功: providers=%d default=%s", len(table.Providers), table.DefaultProvider)
	return LoadResult{Success: true, UsingFallback: false}
}

func fetchTable(ctx context.Context, fetcher ConfigFetcher) (Table, error) {
	if fetcher == nil {
		return Table{}, fmt.Errorf("config fetcher 未配置")
	}
	raw, err := fetcher.FetchConfig(ctx)
	if err != nil {
		return Table{}, err
	}
	if err := validatePayload(raw); err != nil {
		return Table{}, fmt.Errorf("配置结构校验失败: %w", err)
	}
	var payload configPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Table{}, fmt.Errorf("解析配置响应失败: %w", err)
	}
	if !payload.Success || payload.Config == nil {
		if payload.Error != "" {
			return Table{}, fmt.Errorf("后端返回失败: %s", payload.Error)
		}
		return Table{}, fmt.Errorf("后端返回失败: success=false")
	}
	table := *payload.Config
	for id, p := range table.Providers {
		p.ID = id
		table.Providers[id] = p
	}
	if err := validateTable(table); err != nil {
		return Table{}, err
	}
	return table, nil
}

// validateTable 检查任何被接受的表都要满足的不变量。
func validateTable(t Table) error {
	if len(t.Providers) == 0 {
		return fmt.Errorf("能力表为空")
	}
	for id, p := range t.Providers {
		if len(p.Models) == 0 {
			return fmt.Errorf("provider %s 模型列表为空", id)
		}
		if !p.HasModel(p.DefaultModel) {
			return fmt.Errorf("provider %s 的默认模型 %s 不在模型列表中", id, p.DefaultModel)
		}
	}
	if t.DefaultProvider != "" {
		if _, ok := t.Providers[t.DefaultProvider]; !ok {
			return fmt.Errorf("默认 provider %s 不存在", t.DefaultProvider)
		}
	}
	return nil
}

func (s *Store) replace(t Table, fallback bool) {
	s.mu.Lock()
	s.table = t
	s.usingFallback = fallback
	s.loaded = true
	s.mu.Unlock()
}

// Table 返回当前能力表快照。未加载时返回内置表，保证读路径永不失败。
func (s *Store) Table() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return fallbackTable()
	}
	return s.table
}

// UsingFallback 报告当前是否运行在内置配置上。
func (s *Store) UsingFallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usingFallback
}

// Provider 查找单个 provider。
// 未命中返回 ok=false 并记录一条警告，绝不 panic：查找发生在界面刷新
// 路径上，配置缺项只能降级为空操作。
func (s *Store) Provider(id string) (ProviderCapability, bool) {
	t := s.Table()
	p, ok := t.Providers[id]
	if !ok {
		logger.Warnf("未知的 provider: %q", id)
		return ProviderCapability{}, false
	}
	return p, true
}
