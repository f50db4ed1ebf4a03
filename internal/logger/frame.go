package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

// 流式帧镜像：排查 provider 行为时把原始 data 帧另写一份日志。
// 默认关闭，writer 为 nil 时所有调用都是空操作。

var (
	frameMu   sync.Mutex
	frameLog  *log.Logger
	frameDump bool
)

func SetFrameWriter(w io.Writer) {
	frameMu.Lock()
	defer frameMu.Unlock()
	if w == nil {
		frameLog = nil
		return
	}
	frameLog = log.New(w, "", log.LstdFlags)
}

func EnableFrameDump(on bool) {
	frameMu.Lock()
	frameDump = on
	frameMu.Unlock()
}

const frameDumpLimit = 2048

// DumpFrame 记录一条原始流式帧。payload 过长时截断，避免 base64 图片数据刷爆日志。
func DumpFrame(provider, mode, payload string) {
	frameMu.Lock()
	l := frameLog
	on := frameDump
	frameMu.Unlock()
	if l == nil || !on {
		return
	}
	payload = strings.TrimSpace(payload)
	if len(payload) > frameDumpLimit {
		payload = payload[:frameDumpLimit] + "...(truncated)"
	}
	var b strings.Builder
	b.WriteString("[FRAME]")
	if provider != "" {
		b.WriteString("[")
		b.WriteString(provider)
		b.WriteString("]")
	}
	if mode != "" {
		b.WriteString("[")
		b.WriteString(mode)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(payload)
	l.Print(b.String())
}
