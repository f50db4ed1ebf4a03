package prefs

import "sync"

// SessionStore 对应浏览器端的 sessionStorage：两个自由文本字段
// （编辑指令、生成描述）的草稿只活在进程生命周期内，不落盘。
type SessionStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{m: map[string]string{}}
}

func (s *SessionStore) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[key]
}

func (s *SessionStore) Set(key, value string) {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}

// Snapshot 返回全部草稿的拷贝。
func (s *SessionStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}
