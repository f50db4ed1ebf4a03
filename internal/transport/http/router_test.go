package controlhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"imgchat/internal/autorun"
	"imgchat/internal/backend"
	"imgchat/internal/capability"
	"imgchat/internal/feed"
	"imgchat/internal/prefs"
	"imgchat/internal/prompts"
	"imgchat/internal/state"
	"imgchat/internal/task"
	"imgchat/internal/types"
)

// fakeBackend 返回预置的流式响应，不走网络。
type fakeBackend struct {
	streamBody string

	mu      sync.Mutex
	streams int
}

func (f *fakeBackend) SubmitTask(context.Context, types.TaskParams) (backend.AtomicResponse, error) {
	return backend.AtomicResponse{Success: true}, nil
}

func (f *fakeBackend) OpenTaskStream(context.Context, types.TaskParams) (io.ReadCloser, error) {
	f.mu.Lock()
	f.streams++
	f.mu.Unlock()
	return io.NopCloser(strings.NewReader(f.streamBody)), nil
}

func (f *fakeBackend) streamCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams
}

func newTestRouter(t *testing.T) (*Router, *state.AppState, *gin.Engine) {
	r, st, engine, _ := newTestRouterBackend(t)
	return r, st, engine
}

func newTestRouterBackend(t *testing.T) (*Router, *state.AppState, *gin.Engine, *fakeBackend) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	caps := capability.NewStore()
	st := state.New(caps, nil, prefs.NewSessionStore(), 8)
	fb := &fakeBackend{
		streamBody: "data: {\"filename\": \"a.png\", \"download_url\": \"/a\"}\ndata: [DONE]\n",
	}
	exec := task.NewExecutor(task.NewResolver(st, caps), fb, nil)
	gallery := feed.New(feed.DefaultCapacity)
	r := &Router{
		State:   st,
		Caps:    caps,
		Exec:    exec,
		Auto:    autorun.NewRunner(context.Background(), exec, st, gallery),
		Gallery: gallery,
	}
	engine := gin.New()
	r.Register(engine.Group("/api"))
	return r, st, engine, fb
}

func doJSON(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGetConfig(t *testing.T) {
	_, _, engine := newTestRouter(t)
	w := doJSON(engine, http.MethodGet, "/api/config", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"google"`)
	assert.Contains(t, w.Body.String(), `"defaultProvider":"google"`)
}

func TestStateMasksCredentials(t *testing.T) {
	_, st, engine := newTestRouter(t)
	st.SetCredential("google", "AIza-secret")

	w := doJSON(engine, http.MethodGet, "/api/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "AIza-secret")
	assert.Contains(t, body, `"credentials_present":["google"]`)
}

func TestUpdateState(t *testing.T) {
	_, st, engine := newTestRouter(t)
	w := doJSON(engine, http.MethodPut, "/api/state", map[string]any{
		"provider":    "tuzi",
		"image_count": 3,
		"description": "一片森林",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	snap := st.Snapshot()
	assert.Equal(t, "tuzi", snap.Provider)
	assert.Equal(t, 3, snap.ImageCount)
	assert.Equal(t, "一片森林", snap.Description)
}

func TestUpdateStateRejectsBadMode(t *testing.T) {
	_, _, engine := newTestRouter(t)
	w := doJSON(engine, http.MethodPut, "/api/state", map[string]any{"mode": "remix"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetCredentialUnknownProvider(t *testing.T) {
	_, _, engine := newTestRouter(t)
	w := doJSON(engine, http.MethodPut, "/api/credentials/nope", map[string]any{"api_key": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunValidationErrorIs400(t *testing.T) {
	_, _, engine := newTestRouter(t)
	// 没配 API Key，校验直接拦下。
	w := doJSON(engine, http.MethodPost, "/api/run", map[string]any{"mode": "generate"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "API Key")
}

func TestRunStreamReplacesGallery(t *testing.T) {
	r, st, engine := newTestRouter(t)
	st.SetCredential("google", "AIza-test")
	st.SetDescription("一只猫")
	r.Gallery.Append([]types.ImageRecord{{Filename: "old.png"}})

	w := doJSON(engine, http.MethodPost, "/api/run", map[string]any{"mode": "generate"})
	assert.Equal(t, http.StatusOK, w.Code)

	entries := r.Gallery.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "a.png", entries[0].Filename)
}

func TestAutoStartAndStop(t *testing.T) {
	r, st, engine := newTestRouter(t)
	st.SetCredential("google", "AIza-test")
	st.SetDescription("一只猫")

	w := doJSON(engine, http.MethodPost, "/api/auto/start", map[string]any{"mode": "generate"})
	assert.Equal(t, http.StatusOK, w.Code)

	// 运行中的手动任务被拒绝。
	w = doJSON(engine, http.MethodPost, "/api/run", map[string]any{"mode": "generate"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// 重复启动冲突。
	w = doJSON(engine, http.MethodPost, "/api/auto/start", map[string]any{"mode": "generate"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(engine, http.MethodPost, "/api/auto/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, r.Auto.Running())
}

// AUTO 循环必须活过启动它的那次请求：真实 server 会在响应返回后
// 取消 request ctx，循环不能跟着退出。
func TestAutoLoopOutlivesStartRequest(t *testing.T) {
	r, st, engine, fb := newTestRouterBackend(t)
	st.SetCredential("google", "AIza-test")
	st.SetDescription("一只猫")
	srv := httptest.NewServer(engine)
	defer srv.Close()
	defer r.Auto.Stop()

	resp, err := http.Post(srv.URL+"/api/auto/start", "application/json",
		strings.NewReader(`{"mode": "generate"}`))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// 响应已经返回、request ctx 已取消，循环仍应完成至少第一轮。
	deadline := time.Now().Add(2 * time.Second)
	for r.Auto.Status().Stats.Success == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, r.Auto.Running())
	assert.GreaterOrEqual(t, fb.streamCount(), 1)
	assert.GreaterOrEqual(t, r.Auto.Status().Stats.Success, 1)
}

func newTestRouterWithPrompts(t *testing.T) *gin.Engine {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prompts/p1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success": true, "prompt": {"id": "p1", "label": "水彩", "content": "watercolor", "tags": ["风格"]}}`)
	})
	mux.HandleFunc("PUT /api/prompts/p1", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		label := "水彩"
		if bytes.Contains(body, []byte("label")) {
			var m map[string]any
			_ = json.Unmarshal(body, &m)
			label, _ = m["label"].(string)
		}
		fmt.Fprintf(w, `{"success": true, "prompt": {"id": "p1", "label": %q, "content": "watercolor", "tags": []}}`, label)
	})
	mux.HandleFunc("POST /api/prompts/p1/use", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success": true}`)
	})
	backendSrv := httptest.NewServer(mux)
	t.Cleanup(backendSrv.Close)

	r, _, engine, _ := newTestRouterBackend(t)
	r.Prompts = prompts.NewClient(backendSrv.URL, 0)
	// 带 Prompts 的路由需要重新挂载。
	engine = gin.New()
	r.Register(engine.Group("/api"))
	return engine
}

func TestPromptGetRoute(t *testing.T) {
	engine := newTestRouterWithPrompts(t)
	w := doJSON(engine, http.MethodGet, "/api/prompts/p1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"label":"水彩"`)
	assert.Contains(t, w.Body.String(), `"tags":["风格"]`)
}

func TestPromptUpdateRoute(t *testing.T) {
	engine := newTestRouterWithPrompts(t)
	w := doJSON(engine, http.MethodPut, "/api/prompts/p1", map[string]any{"label": "水彩 v2"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"label":"水彩 v2"`)

	// 空更新直接拦下，不打后端。
	w = doJSON(engine, http.MethodPut, "/api/prompts/p1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPromptUseRoute(t *testing.T) {
	engine := newTestRouterWithPrompts(t)
	w := doJSON(engine, http.MethodPost, "/api/prompts/p1/use", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestFeedEndpoint(t *testing.T) {
	r, _, engine := newTestRouter(t)
	r.Gallery.Append([]types.ImageRecord{{Filename: "a.png", DownloadURL: "/a"}})

	w := doJSON(engine, http.MethodGet, "/api/feed", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"filename":"a.png"`)
}
