// Package autorun 实现 AUTO 模式：反复调用任务执行器直到用户停止，
// 轮与轮之间按并发建议表计算自适应延迟。循环是协作式的：停止请求
// 只在循环顶部和延迟结束后生效，进行中的请求不会被硬中断，已产出
// 的结果不丢失。
package autorun

import (
	"context"
	"strings"
	"sync"
	"time"

	"imgchat/internal/feed"
	"imgchat/internal/logger"
	"imgchat/internal/rules"
	"imgchat/internal/state"
	"imgchat/internal/stream"
	"imgchat/internal/task"
	"imgchat/internal/types"
)

// Executor 是循环依赖的执行器能力子集。
type Executor interface {
	Run(ctx context.Context, mode types.Mode, opts task.Options) (types.TaskResult, error)
}

// Stats 是 AUTO 会话的累计计数。
// Total 在每轮发起前按本轮批量预加（表示"已请求"），Success/Fail 在
// 该轮结束后结算，所以请求进行中 Success+Fail 会短暂小于 Total——
// 这是有意保留的语义，不是漏算。
type Stats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Fail    int `json:"fail"`
}

// Status 是会话状态快照。
type Status struct {
	Enabled   bool       `json:"enabled"`
	Running   bool       `json:"running"`
	Mode      types.Mode `json:"mode,omitempty"`
	Stats     Stats      `json:"stats"`
	ImageURLs []string   `json:"session_image_urls"`
}

// Runner 是 AUTO 模式调度器。状态机：Idle → Running → Idle，
// 停止即完全回到 Idle，没有单独的 Stopped 态。
type Runner struct {
	// 循环挂在应用生命周期的 ctx 上，和触发启动的那次 HTTP 请求无关：
	// 请求返回后 net/http 会取消 request ctx，循环不能跟着陪葬。
	ctx   context.Context
	exec  Executor
	state *state.AppState
	feed  *feed.Feed

	// 可注入的等待函数，返回 false 表示等待期间被叫停。测试用。
	sleep func(d time.Duration, stop <-chan struct{}) bool

	mu        sync.Mutex
	enabled   bool
	running   bool
	loopAlive bool
	mode      types.Mode
	stats     Stats
	urls      []string
	stopCh    chan struct{}
}

func NewRunner(ctx context.Context, exec Executor, st *state.AppState, gallery *feed.Feed) *Runner {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &Runner{ctx: ctx, exec: exec, state: st, feed: gallery}
	r.sleep = func(d time.Duration, stop <-chan struct{}) bool {
		if d <= 0 {
			return true
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return true
		case <-stop:
			return false
		}
	}
	return r
}

// Start 从 Idle 进入 Running：清零统计和会话图片列表后启动循环。
// 已在运行时返回错误。
func (r *Runner) Start(mode types.Mode) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return types.NewValidationError("AUTO 模式已在运行")
	}
	r.enabled = true
	r.running = true
	r.loopAlive = true
	r.mode = mode
	r.stats = Stats{}
	r.urls = nil
	r.stopCh = make(chan struct{})
	stop := r.stopCh
	r.mu.Unlock()

	logger.Infof("AUTO 模式启动: mode=%s", mode)
	go r.loop(mode, stop)
	return nil
}

// Stop 请求停止并把会话完全重置回 Idle。幂等：空闲时调用是空操作。
// 进行中的请求/延迟不会被打断，循环在下一个检查点退出。
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running && !r.enabled {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.loopAlive = false
	r.enabled = false
	r.mode = ""
	r.stats = Stats{}
	r.urls = nil
	if r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
	r.mu.Unlock()
	logger.Infof("AUTO 模式停止")
}

// Running 报告循环是否在运行。
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Status 返回会话快照。
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	urls := make([]string, len(r.urls))
	copy(urls, r.urls)
	return Status{
		Enabled:   r.enabled,
		Running:   r.running,
		Mode:      r.mode,
		Stats:     r.stats,
		ImageURLs: urls,
	}
}

// aliveFor 检查会话是否仍在运行，且 stop 仍是当前会话的通道——
// 防止停了又立刻重启时，上一个循环的收尾写到新会话头上。
func (r *Runner) aliveFor(stop chan struct{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running && r.loopAlive && r.stopCh == stop
}

func (r *Runner) loop(mode types.Mode, stop chan struct{}) {
	defer func() {
		r.mu.Lock()
		if r.stopCh == stop {
			r.running = false
			r.loopAlive = false
		}
		r.mu.Unlock()
	}()

	for r.aliveFor(stop) {
		if r.ctx.Err() != nil {
			logger.Warnf("AUTO 循环退出: %v", r.ctx.Err())
			return
		}
		// 每轮重新读滑块值和 provider/model，运行中的调整下一轮生效。
		snap := r.state.Snapshot()
		n := snap.AutoConcurrency
		if n < 1 {
			n = 1
		}

		// 先按"已请求"预加 Total，成功/失败在本轮结束后对账。
		r.mu.Lock()
		r.stats.Total += n
		r.mu.Unlock()

		sink := stream.SinkFunc(func(img types.ImageRecord) {
			r.feed.Append([]types.ImageRecord{img})
		})
		result, err := r.exec.Run(r.ctx, mode, task.Options{
			UseStream:       true,
			ForceImageCount: n,
			Sink:            sink,
			Auto:            true,
		})

		if !r.aliveFor(stop) {
			// 停止发生在请求进行中：统计已被重置，不再回写。
			return
		}

		var failMsg string
		switch {
		case err != nil:
			failMsg = err.Error()
		case !result.Success:
			failMsg = result.Err
		}
		if failMsg == "" {
			r.mu.Lock()
			r.stats.Success += result.TotalReceived
			for _, img := range result.Images {
				r.urls = append(r.urls, img.DownloadURL)
			}
			r.mu.Unlock()
		} else {
			r.mu.Lock()
			r.stats.Fail += n
			r.mu.Unlock()
			logger.Warnf("AUTO 轮次失败: %s", failMsg)
			if isFatal(failMsg) {
				// 凭证/配置类错误重试也不会好转，循环自行终止。
				logger.Errorf("AUTO 模式因致命错误终止: %s", failMsg)
				return
			}
		}

		// 规则每轮现查，不缓存：运行中切换 provider/model 会影响下一次延迟。
		cur := r.state.Snapshot()
		rule := rules.Lookup(cur.Provider, cur.Model)
		delay := rules.AdaptiveDelay(rule, n)
		logger.Debugf("AUTO 轮次完成: n=%d delay=%s", n, delay)
		if !r.sleep(delay, stop) {
			return
		}
	}
}

// isFatal 判断错误是否属于凭证/配置问题——AUTO 模式唯一的自行终止场景。
func isFatal(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range []string{"api key", "api_key", "apikey", "unauthorized", "invalid key"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, kw := range []string{"API Key", "凭证", "未知的服务商", "未知的任务模式"} {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
