package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"imgchat/internal/logger"
)

// WatchLogLevel 监听配置文件变更，热更新日志级别。
// 只有 app.log_level 支持热更，其余字段改了需要重启。
// 返回关闭函数；监听建立失败只降级为警告，不影响启动。
func WatchLogLevel(path string) func() {
	abs, err := filepath.Abs(path)
	if err != nil {
		logger.Warnf("配置监听未启用: %v", err)
		return func() {}
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("配置监听未启用: %v", err)
		return func() {}
	}
	// 监听目录而不是文件：编辑器普遍用重命名替换文件，直接监听文件会丢事件。
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		logger.Warnf("配置监听未启用: %v", err)
		return func() {}
	}

	go func() {
		var last time.Time
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				// 编辑器保存会连发多个事件，做个粗糙的去抖。
				if time.Since(last) < 200*time.Millisecond {
					continue
				}
				last = time.Now()
				cfg, err := Load(abs)
				if err != nil {
					logger.Warnf("配置重载失败，保持原级别: %v", err)
					continue
				}
				logger.SetLevel(cfg.App.LogLevel)
				logger.Infof("日志级别已更新: %s", strings.ToLower(cfg.App.LogLevel))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("配置监听错误: %v", err)
			}
		}
	}()
	return func() { watcher.Close() }
}
