// Package app 组装全部组件并承载进程生命周期。
package app

import (
	"context"
	"time"

	"imgchat/internal/autorun"
	"imgchat/internal/backend"
	"imgchat/internal/capability"
	"imgchat/internal/config"
	"imgchat/internal/feed"
	"imgchat/internal/logger"
	"imgchat/internal/prefs"
	"imgchat/internal/prompts"
	"imgchat/internal/state"
	"imgchat/internal/store/tasklog"
	"imgchat/internal/task"
	controlhttp "imgchat/internal/transport/http"
)

// App 持有全部长生命周期对象。
type App struct {
	cfg       *config.Config
	caps      *capability.Store
	state     *state.AppState
	store     *prefs.Store
	taskLog   *tasklog.Store
	runner    *autorun.Runner
	server    *controlhttp.Server
	stopLoops context.CancelFunc
}

// NewApp 按依赖顺序构建应用：存储 → 能力表 → 状态 → 执行器 → 调度器 → HTTP。
// 偏好库和配置拉取失败都不阻断启动，只降级加警告。
func NewApp(cfg *config.Config) (*App, error) {
	client := backend.NewClient(cfg.Backend.BaseURL, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)

	caps := capability.NewStore()
	loadCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	result := caps.Load(loadCtx, client)
	cancel()
	if result.UsingFallback {
		logger.Warnf("后端配置不可用，本次会话使用内置能力表")
	}

	store, err := prefs.Open(cfg.Storage.PrefsPath)
	if err != nil {
		logger.Warnf("偏好库打开失败，本次会话不持久化偏好: %v", err)
		store = nil
	}
	taskLog, err := tasklog.Open(cfg.Storage.TaskLogPath, cfg.Storage.HistoryLimit)
	if err != nil {
		logger.Warnf("任务日志库打开失败，本次会话不记录历史: %v", err)
		taskLog = nil
	}

	st := state.New(caps, store, prefs.NewSessionStore(), cfg.Auto.MaxConcurrency)
	st.Restore()

	resolver := task.NewResolver(st, caps)
	exec := task.NewExecutor(resolver, client, taskLog)
	gallery := feed.New(feed.DefaultCapacity)
	// AUTO 循环不能挂在某次 HTTP 请求的 ctx 上，给它独立的应用级 ctx。
	loopCtx, stopLoops := context.WithCancel(context.Background())
	runner := autorun.NewRunner(loopCtx, exec, st, gallery)

	router := &controlhttp.Router{
		State:   st,
		Caps:    caps,
		Exec:    exec,
		Auto:    runner,
		Gallery: gallery,
		Log:     taskLog,
		Prompts: prompts.NewClient(cfg.Backend.BaseURL, 15*time.Second),
	}
	server, err := controlhttp.NewServer(cfg.App.HTTPAddr, router)
	if err != nil {
		stopLoops()
		return nil, err
	}

	return &App{
		cfg:       cfg,
		caps:      caps,
		state:     st,
		store:     store,
		taskLog:   taskLog,
		runner:    runner,
		server:    server,
		stopLoops: stopLoops,
	}, nil
}

// Run 启动控制接口并阻塞到 ctx 取消，退出前停掉 AUTO 循环并关闭存储。
func (a *App) Run(ctx context.Context) error {
	defer a.shutdown()
	return a.server.Start(ctx)
}

func (a *App) shutdown() {
	a.runner.Stop()
	a.stopLoops()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("关闭偏好库失败: %v", err)
		}
	}
	if a.taskLog != nil {
		if err := a.taskLog.Close(); err != nil {
			logger.Warnf("关闭任务日志库失败: %v", err)
		}
	}
	logger.Infof("imgchat 已退出")
}
