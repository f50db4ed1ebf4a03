// Package stream 解码后端的流式图片响应。
// 响应体是按行切分的帧：`data: <json>\n`，以 `data: [DONE]\n` 收尾，
// 错误帧形如 `data: {"error": "..."}`。编辑和生成两个接口共用同一种帧格式。
package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"imgchat/internal/logger"
	"imgchat/internal/types"
)

const (
	framePrefix  = "data:"
	doneSentinel = "[DONE]"
)

// Sink 每解出一条图片记录被调用一次，调用顺序即帧到达顺序。
// 解码器不关心渲染，Sink 的实现决定记录去向。
type Sink interface {
	Accept(types.ImageRecord)
}

// SinkFunc 把函数适配成 Sink。
type SinkFunc func(types.ImageRecord)

func (f SinkFunc) Accept(r types.ImageRecord) { f(r) }

// Result 汇总一次流式解码。
// Success 为 false 当且仅当出现过错误帧，或整个流没有产出任何图片。
type Result struct {
	Success       bool
	TotalReceived int
	Err           string
}

// Decoder 维护跨 chunk 的行缓冲。
// 每次 Feed 把新数据追加进缓冲并按换行切分，最后一段（可能不完整）
// 留待下一个 chunk，任意字节边界的切分都不影响解码结果。
type Decoder struct {
	sink Sink
	tag  string

	buf    strings.Builder
	total  int
	errMsg string
	done   bool
}

// NewDecoder 构造解码器。tag 仅用于日志定位（provider/mode 之类）。
func NewDecoder(sink Sink, tag string) *Decoder {
	return &Decoder{sink: sink, tag: tag}
}

// Feed 追加一个网络 chunk。
func (d *Decoder) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	d.buf.Write(chunk)
	text := d.buf.String()
	lines := strings.Split(text, "\n")
	d.buf.Reset()
	// 最后一段留作新缓冲：它要么是空串，要么是半行。
	d.buf.WriteString(lines[len(lines)-1])
	for _, line := range lines[:len(lines)-1] {
		d.processLine(line)
	}
}

// Flush 在流结束时处理缓冲里残留的最后一行（无尾换行的情况）。
func (d *Decoder) Flush() {
	rest := d.buf.String()
	d.buf.Reset()
	if rest != "" {
		d.processLine(rest)
	}
}

func (d *Decoder) processLine(line string) {
	line = strings.TrimRight(line, "\r")
	if d.done || strings.TrimSpace(line) == "" {
		return
	}
	if !strings.HasPrefix(line, framePrefix) {
		logger.Debugf("跳过非 data 帧 [%s]: %q", d.tag, truncate(line, 120))
		return
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, framePrefix))
	if payload == "" {
		return
	}
	if payload == doneSentinel {
		d.done = true
		return
	}
	logger.DumpFrame(d.tag, "", payload)

	// 先用 gjson 探一眼 error 字段，错误帧只记录消息，继续排空后续帧，
	// 已经发出去的图片不作废。
	if msg := gjson.Get(payload, "error"); msg.Exists() && msg.String() != "" {
		if d.errMsg == "" {
			d.errMsg = msg.String()
		}
		logger.Warnf("流式响应携带错误帧 [%s]: %s", d.tag, msg.String())
		return
	}

	var record types.ImageRecord
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		// 单帧 JSON 损坏只跳过，绝不让整个解码失败。
		logger.Warnf("跳过无法解析的帧 [%s]: %v", d.tag, err)
		return
	}
	d.total++
	if d.sink != nil {
		d.sink.Accept(record)
	}
}

// Result 返回当前累计结果。流完全读完后调用。
func (d *Decoder) Result() Result {
	r := Result{
		TotalReceived: d.total,
		Err:           d.errMsg,
	}
	r.Success = d.errMsg == "" && d.total > 0
	if !r.Success && r.Err == "" {
		r.Err = "流式响应未返回任何图片"
	}
	return r
}

const readChunkSize = 4096

// DecodeBody 从 HTTP 响应体读 chunk 喂给解码器，直到流结束。
// ctx 取消时停止读取并按已收内容结算。
func DecodeBody(ctx context.Context, body io.Reader, sink Sink, tag string) Result {
	d := NewDecoder(sink, tag)
	chunk := make([]byte, readChunkSize)
	for {
		if ctx != nil && ctx.Err() != nil {
			logger.Warnf("流式解码被取消 [%s]: %v", tag, ctx.Err())
			break
		}
		n, err := body.Read(chunk)
		if n > 0 {
			d.Feed(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warnf("读取流式响应失败 [%s]: %v", tag, err)
			if d.errMsg == "" {
				d.errMsg = err.Error()
			}
			break
		}
	}
	d.Flush()
	return d.Result()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
