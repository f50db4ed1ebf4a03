package task

import (
	"context"
	"io"

	"github.com/google/uuid"

	"imgchat/internal/backend"
	"imgchat/internal/logger"
	"imgchat/internal/store/tasklog"
	"imgchat/internal/stream"
	"imgchat/internal/types"
)

// Backend 是执行器依赖的后端能力子集。
type Backend interface {
	SubmitTask(ctx context.Context, p types.TaskParams) (backend.AtomicResponse, error)
	OpenTaskStream(ctx context.Context, p types.TaskParams) (io.ReadCloser, error)
}

// ParamSource 产出一次调用的参数包。
type ParamSource interface {
	Resolve(mode types.Mode) (types.TaskParams, error)
}

// Options 控制一次执行。
type Options struct {
	UseStream bool
	// AUTO 模式用它覆盖手动模式的数量字段，落实自己的并发决策。
	ForceImageCount int
	// 每到一张图立即回调（流式下在请求完成前就能看到部分结果）。
	Sink stream.Sink
	// 标记 AUTO 轮次，仅用于任务日志。
	Auto bool
}

// Executor 执行单次任务：解析参数、调用后端、汇总结果并记日志。
type Executor struct {
	params ParamSource
	client Backend
	log    *tasklog.Store
}

func NewExecutor(params ParamSource, client Backend, log *tasklog.Store) *Executor {
	return &Executor{params: params, client: client, log: log}
}

// Run 执行一次任务。参数校验失败时返回 (零值, *types.ValidationError)；
// 后端报错不作为 error 返回，而是写进 TaskResult.Err，方便 AUTO 统计。
func (e *Executor) Run(ctx context.Context, mode types.Mode, opts Options) (types.TaskResult, error) {
	p, err := e.params.Resolve(mode)
	if err != nil {
		return types.TaskResult{}, err
	}
	if opts.ForceImageCount > 0 {
		p.ImageCount = opts.ForceImageCount
	}
	traceID := uuid.NewString()
	logger.Infof("任务开始 [%s] mode=%s provider=%s model=%s count=%d stream=%v",
		traceID[:8], mode, p.Provider, p.Model, p.ImageCount, opts.UseStream)

	var result types.TaskResult
	if opts.UseStream {
		result = e.runStream(ctx, p, opts.Sink)
	} else {
		result = e.runAtomic(ctx, p, opts.Sink)
	}

	if result.Success {
		logger.Infof("任务完成 [%s] received=%d", traceID[:8], result.TotalReceived)
	} else {
		logger.Warnf("任务失败 [%s]: %s", traceID[:8], result.Err)
	}
	e.record(traceID, p, opts.Auto, result)
	return result, nil
}

func (e *Executor) runStream(ctx context.Context, p types.TaskParams, sink stream.Sink) types.TaskResult {
	body, err := e.client.OpenTaskStream(ctx, p)
	if err != nil {
		return types.TaskResult{Err: err.Error()}
	}
	defer body.Close()

	var collected []types.ImageRecord
	collector := stream.SinkFunc(func(r types.ImageRecord) {
		collected = append(collected, r)
		if sink != nil {
			sink.Accept(r)
		}
	})
	res := stream.DecodeBody(ctx, body, collector, p.Provider+"/"+string(p.Mode))
	return types.TaskResult{
		Success:       res.Success,
		Images:        collected,
		TotalReceived: res.TotalReceived,
		Err:           res.Err,
	}
}

func (e *Executor) runAtomic(ctx context.Context, p types.TaskParams, sink stream.Sink) types.TaskResult {
	resp, err := e.client.SubmitTask(ctx, p)
	if err != nil {
		return types.TaskResult{Err: err.Error()}
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "后端返回失败"
		}
		return types.TaskResult{Err: msg}
	}
	if sink != nil {
		for _, img := range resp.Images {
			sink.Accept(img)
		}
	}
	return types.TaskResult{
		Success:       true,
		Images:        resp.Images,
		TotalReceived: len(resp.Images),
	}
}

func (e *Executor) record(traceID string, p types.TaskParams, auto bool, result types.TaskResult) {
	if e.log == nil {
		return
	}
	urls := make([]string, 0, len(result.Images))
	for _, img := range result.Images {
		urls = append(urls, img.DownloadURL)
	}
	err := e.log.Append(tasklog.Record{
		TraceID:   traceID,
		Mode:      p.Mode,
		Provider:  p.Provider,
		Model:     p.Model,
		Requested: p.ImageCount,
		Received:  result.TotalReceived,
		Success:   result.Success,
		Auto:      auto,
		Error:     result.Err,
		Images:    urls,
	})
	if err != nil {
		logger.Warnf("写入任务日志失败: %v", err)
	}
}
