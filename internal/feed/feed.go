// Package feed 维护一个容量有界、保持到达顺序的结果列表。
// AUTO 模式只允许追加（超出容量淘汰最旧条目）；手动模式整体替换，
// 因为一次手动任务的结果是一个离散批次，不是累积流。
package feed

import (
	"sync"
	"time"

	"imgchat/internal/types"
)

// DefaultCapacity 是 AUTO 模式画廊的默认上限。
const DefaultCapacity = 20

// Entry 是画廊里的一条渲染记录。
type Entry struct {
	Filename    string    `json:"filename"`
	DownloadURL string    `json:"download_url"`
	ImageData   string    `json:"image_data,omitempty"`
	ArrivedAt   time.Time `json:"arrived_at"`
}

// Feed 是有界的有序列表。并发安全：AUTO 循环写，HTTP 接口读。
type Feed struct {
	mu      sync.Mutex
	cap     int
	entries []Entry
}

// New 构造容量为 capacity 的 Feed，capacity <= 0 时取默认值。
func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{cap: capacity}
}

// Append 把一批图片追加到末尾，超出容量时从头部淘汰，剩余条目顺序不变。
func (f *Feed) Append(images []types.ImageRecord) {
	if len(images) == 0 {
		return
	}
	now := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range images {
		f.entries = append(f.entries, Entry{
			Filename:    img.Filename,
			DownloadURL: img.DownloadURL,
			ImageData:   img.ImageData,
			ArrivedAt:   now,
		})
	}
	if over := len(f.entries) - f.cap; over > 0 {
		f.entries = append(f.entries[:0:0], f.entries[over:]...)
	}
}

// Replace 清空后整体写入（手动模式的一次性结果）。
func (f *Feed) Replace(images []types.ImageRecord) {
	now := time.Now()
	entries := make([]Entry, 0, len(images))
	for _, img := range images {
		entries = append(entries, Entry{
			Filename:    img.Filename,
			DownloadURL: img.DownloadURL,
			ImageData:   img.ImageData,
			ArrivedAt:   now,
		})
	}
	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
}

// Clear 清空列表。
func (f *Feed) Clear() {
	f.mu.Lock()
	f.entries = nil
	f.mu.Unlock()
}

// Entries 返回当前条目快照。
func (f *Feed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len 返回当前条目数。
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
