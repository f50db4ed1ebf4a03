// Package backend 封装对 image-chat 后端的 HTTP 访问。
// 后端是外部协作方，这里只消费四类接口：配置查询、原子图片接口、
// 流式图片接口，以及下载链接（仅透传 URL，不在客户端落盘）。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"imgchat/internal/logger"
	"imgchat/internal/types"
)

const (
	configPath        = "/api/config"
	editPath          = "/api/edit-image"
	generatePath      = "/api/generate-image"
	editStreamPath    = "/api/edit-image-stream"
	genStreamPath     = "/api/generate-image-stream"
	defaultTimeout    = 300 * time.Second
	configFetchWindow = 10 * time.Second
)

// Client 是后端的 HTTP 客户端。
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient 构造客户端。图片接口耗时可达分钟级，timeout<=0 时取较宽的默认值。
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// FetchConfig 拉取 /api/config 的原始响应，校验与解析交给 capability 层。
func (c *Client) FetchConfig(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, configFetchWindow)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+configPath, nil)
	if err != nil {
		return nil, fmt.Errorf("构造配置请求失败: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求配置接口失败: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取配置响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("配置接口返回 %d: %s", resp.StatusCode, extractError(data))
	}
	return data, nil
}

// AtomicResponse 是非流式图片接口的完整响应。
type AtomicResponse struct {
	Success bool                `json:"success"`
	Images  []types.ImageRecord `json:"images"`
	Count   int                 `json:"count"`
	Error   string              `json:"error,omitempty"`
}

// SubmitTask 调用非流式接口，一次请求换一个完整 JSON。
func (c *Client) SubmitTask(ctx context.Context, p types.TaskParams) (AtomicResponse, error) {
	body, contentType, err := buildForm(p)
	if err != nil {
		return AtomicResponse{}, err
	}
	path := generatePath
	if p.Mode == types.ModeEdit {
		path = editPath
	}
	data, err := c.post(ctx, path, body, contentType)
	if err != nil {
		return AtomicResponse{}, err
	}
	var out AtomicResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return AtomicResponse{}, fmt.Errorf("解析图片接口响应失败: %w", err)
	}
	return out, nil
}

// OpenTaskStream 调用流式接口，返回原始响应体交给 stream 包解码。
// 调用方负责 Close。
func (c *Client) OpenTaskStream(ctx context.Context, p types.TaskParams) (io.ReadCloser, error) {
	body, contentType, err := buildForm(p)
	if err != nil {
		return nil, err
	}
	path := genStreamPath
	if p.Mode == types.ModeEdit {
		path = editStreamPath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构造流式请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求流式接口失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("流式接口返回 %d: %s", resp.StatusCode, extractError(data))
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求后端失败: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	logger.Debugf("POST %s status=%d bytes=%d cost=%s", path, resp.StatusCode, len(data), time.Since(start).Truncate(time.Millisecond))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s", extractError(data))
	}
	return data, nil
}

// buildForm 把任务参数编码为 multipart 表单，字段名与后端表单一致。
// edit 模式的输入图片并发读取，按选择顺序写入表单。
func buildForm(p types.TaskParams) ([]byte, string, error) {
	var fileData [][]byte
	if p.Mode == types.ModeEdit {
		fileData = make([][]byte, len(p.InputImages))
		g := new(errgroup.Group)
		for i, path := range p.InputImages {
			i, path := i, path
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("读取图片 %s 失败: %w", filepath.Base(path), err)
				}
				fileData[i] = data
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, "", err
		}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"api_key":     p.APIKey,
		"provider":    p.Provider,
		"model":       p.Model,
		"temperature": strconv.FormatFloat(p.Temperature, 'f', -1, 64),
		"image_count": strconv.Itoa(p.ImageCount),
	}
	if p.Mode == types.ModeEdit {
		fields["instruction"] = p.Instruction
	} else {
		fields["description"] = p.Description
	}
	if p.AspectRatio != "" {
		fields["aspect_ratio"] = p.AspectRatio
	}
	if p.Resolution != "" {
		fields["resolution"] = p.Resolution
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("写入表单字段 %s 失败: %w", name, err)
		}
	}
	for i, data := range fileData {
		part, err := w.CreateFormFile("image", filepath.Base(p.InputImages[i]))
		if err != nil {
			return nil, "", fmt.Errorf("写入图片表单失败: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("写入图片数据失败: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// extractError 从错误响应里提取可读消息：优先 JSON 的 error 字段，
// 否则用裁剪过的原文。
func extractError(data []byte) string {
	text := strings.TrimSpace(string(data))
	if msg := gjson.GetBytes(data, "error"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	if len(text) > 300 {
		text = text[:300] + "..."
	}
	if text == "" {
		text = "后端未返回错误详情"
	}
	return text
}
