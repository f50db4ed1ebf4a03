// Package prompts 是后端提示词库资源的 REST 客户端。
// 标签字段在边界处规范化（见 normalize.go），往上只暴露 []string。
package prompts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"imgchat/internal/logger"
)

const promptsPath = "/api/prompts"

// Prompt 是规范化后的提示词对象。
type Prompt struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Content    string         `json:"content"`
	Tags       []string       `json:"tags"`
	Meta       map[string]any `json:"meta,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty"`
	UpdatedAt  string         `json:"updated_at,omitempty"`
	UsageCount int            `json:"usage_count"`
	LastUsedAt string         `json:"last_used_at,omitempty"`
}

// ListOptions 对应列表接口的查询参数。
type ListOptions struct {
	Query   string
	Tags    []string
	Sort    string // updated / used / freq
	TagMode string // AND / OR
}

// Client 访问 /api/prompts。
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// List 查询提示词列表。
func (c *Client) List(ctx context.Context, opts ListOptions) ([]Prompt, error) {
	q := url.Values{}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if len(opts.Tags) > 0 {
		q.Set("tags", strings.Join(opts.Tags, ","))
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.TagMode != "" {
		q.Set("tag_mode", opts.TagMode)
	}
	endpoint := c.baseURL + promptsPath
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	data, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	items := gjson.GetBytes(data, "prompts")
	out := []Prompt{}
	items.ForEach(func(_, item gjson.Result) bool {
		out = append(out, decodePrompt(item))
		return true
	})
	logger.Debugf("提示词列表: count=%d", len(out))
	return out, nil
}

// Get 按 id 获取单条提示词。
func (c *Client) Get(ctx context.Context, id string) (Prompt, error) {
	data, err := c.do(ctx, http.MethodGet, c.baseURL+promptsPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return Prompt{}, err
	}
	return decodePrompt(gjson.GetBytes(data, "prompt")), nil
}

// Create 新建提示词。
func (c *Client) Create(ctx context.Context, label, content string, tags []string) (Prompt, error) {
	body := map[string]any{"label": label, "content": content}
	if tags != nil {
		body["tags"] = tags
	}
	data, err := c.do(ctx, http.MethodPost, c.baseURL+promptsPath, body)
	if err != nil {
		return Prompt{}, err
	}
	return decodePrompt(gjson.GetBytes(data, "prompt")), nil
}

// Update 更新提示词，nil 字段保持不变。
func (c *Client) Update(ctx context.Context, id string, label, content *string, tags []string) (Prompt, error) {
	body := map[string]any{}
	if label != nil {
		body["label"] = *label
	}
	if content != nil {
		body["content"] = *content
	}
	if tags != nil {
		body["tags"] = tags
	}
	data, err := c.do(ctx, http.MethodPut, c.baseURL+promptsPath+"/"+url.PathEscape(id), body)
	if err != nil {
		return Prompt{}, err
	}
	return decodePrompt(gjson.GetBytes(data, "prompt")), nil
}

// Delete 删除提示词。
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.baseURL+promptsPath+"/"+url.PathEscape(id), nil)
	return err
}

// MarkUsed 上报一次使用（后端累计 usage_count）。
func (c *Client) MarkUsed(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, c.baseURL+promptsPath+"/"+url.PathEscape(id)+"/use", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body map[string]any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求提示词接口失败: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return nil, fmt.Errorf("提示词接口返回 %d: %s", resp.StatusCode, msg)
	}
	if ok := gjson.GetBytes(data, "success"); ok.Exists() && !ok.Bool() {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = "后端返回失败"
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return data, nil
}

// decodePrompt 在边界处规范化一条提示词，tags 的联合类型在这里收敛。
func decodePrompt(item gjson.Result) Prompt {
	p := Prompt{
		ID:         item.Get("id").String(),
		Label:      item.Get("label").String(),
		Content:    item.Get("content").String(),
		Tags:       NormalizeTags(item.Get("tags")),
		CreatedAt:  item.Get("created_at").String(),
		UpdatedAt:  item.Get("updated_at").String(),
		UsageCount: int(item.Get("usage_count").Int()),
		LastUsedAt: item.Get("last_used_at").String(),
	}
	if meta := item.Get("meta"); meta.IsObject() {
		m := map[string]any{}
		if err := json.Unmarshal([]byte(meta.Raw), &m); err == nil && len(m) > 0 {
			p.Meta = m
		}
	}
	return p
}
