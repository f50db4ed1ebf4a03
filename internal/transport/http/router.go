package controlhttp

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"imgchat/internal/autorun"
	"imgchat/internal/capability"
	"imgchat/internal/feed"
	"imgchat/internal/prompts"
	"imgchat/internal/state"
	"imgchat/internal/store/tasklog"
	"imgchat/internal/task"
	"imgchat/internal/types"
)

// Router 挂载控制接口的全部路由。
type Router struct {
	State   *state.AppState
	Caps    *capability.Store
	Exec    *task.Executor
	Auto    *autorun.Runner
	Gallery *feed.Feed
	Log     *tasklog.Store
	Prompts *prompts.Client
}

// Register 把路由挂到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/config", r.handleConfig)
	group.GET("/state", r.handleState)
	group.PUT("/state", r.handleUpdateState)
	group.PUT("/credentials/:provider", r.handleSetCredential)
	group.DELETE("/credentials/:provider", r.handleClearCredential)
	group.POST("/run", r.handleRun)
	group.POST("/auto/start", r.handleAutoStart)
	group.POST("/auto/stop", r.handleAutoStop)
	group.GET("/auto/stats", r.handleAutoStats)
	group.GET("/feed", r.handleFeed)
	group.GET("/history", r.handleHistory)
	if r.Prompts != nil {
		group.GET("/prompts", r.handlePromptList)
		group.POST("/prompts", r.handlePromptCreate)
		group.GET("/prompts/:id", r.handlePromptGet)
		group.PUT("/prompts/:id", r.handlePromptUpdate)
		group.DELETE("/prompts/:id", r.handlePromptDelete)
		group.POST("/prompts/:id/use", r.handlePromptUse)
	}
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"success": false, "error": msg})
}

func (r *Router) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"config":         r.Caps.Table(),
		"using_fallback": r.Caps.UsingFallback(),
	})
}

// stateView 是对外的状态视图，凭证只暴露"是否已配置"。
type stateView struct {
	Provider            string   `json:"provider"`
	Model               string   `json:"model"`
	Mode                string   `json:"mode"`
	TemperatureEdit     float64  `json:"temperature_edit"`
	TemperatureGenerate float64  `json:"temperature_generate"`
	ImageCount          int      `json:"image_count"`
	Instruction         string   `json:"instruction"`
	Description         string   `json:"description"`
	InputImages         []string `json:"input_images"`
	AspectRatio         string   `json:"aspect_ratio"`
	Resolution          string   `json:"resolution"`
	AutoConcurrency     int      `json:"auto_concurrency"`
	AspectRatioEnabled  bool     `json:"aspect_ratio_enabled"`
	ResolutionEnabled   bool     `json:"resolution_enabled"`
	CredentialsPresent  []string `json:"credentials_present"`
}

func (r *Router) handleState(c *gin.Context) {
	snap := r.State.Snapshot()
	present := make([]string, 0, len(snap.Credentials))
	for provider, key := range snap.Credentials {
		if key != "" {
			present = append(present, provider)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": stateView{
		Provider:            snap.Provider,
		Model:               snap.Model,
		Mode:                string(snap.Mode),
		TemperatureEdit:     snap.TemperatureEdit,
		TemperatureGenerate: snap.TemperatureGenerate,
		ImageCount:          snap.ImageCount,
		Instruction:         snap.Instruction,
		Description:         snap.Description,
		InputImages:         snap.InputImages,
		AspectRatio:         snap.AspectRatio,
		Resolution:          snap.Resolution,
		AutoConcurrency:     snap.AutoConcurrency,
		AspectRatioEnabled:  snap.AspectRatioEnabled,
		ResolutionEnabled:   snap.ResolutionEnabled,
		CredentialsPresent:  present,
	}})
}

// stateUpdate 的字段都是可选的，缺省字段保持原值。
type stateUpdate struct {
	Provider            *string  `json:"provider"`
	Model               *string  `json:"model"`
	Mode                *string  `json:"mode"`
	TemperatureEdit     *float64 `json:"temperature_edit"`
	TemperatureGenerate *float64 `json:"temperature_generate"`
	ImageCount          *int     `json:"image_count"`
	Instruction         *string  `json:"instruction"`
	Description         *string  `json:"description"`
	InputImages         []string `json:"input_images"`
	AspectRatio         *string  `json:"aspect_ratio"`
	Resolution          *string  `json:"resolution"`
	AutoConcurrency     *int     `json:"auto_concurrency"`
}

func (r *Router) handleUpdateState(c *gin.Context) {
	var upd stateUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		fail(c, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}
	if upd.Provider != nil {
		r.State.SetProvider(*upd.Provider)
	}
	if upd.Model != nil {
		r.State.SetModel(*upd.Model)
	}
	if upd.Mode != nil {
		mode, ok := types.ParseMode(*upd.Mode)
		if !ok {
			fail(c, http.StatusBadRequest, "mode 取值非法: "+*upd.Mode)
			return
		}
		r.State.SetMode(mode)
	}
	if upd.TemperatureEdit != nil {
		r.State.SetTemperature(types.ModeEdit, *upd.TemperatureEdit)
	}
	if upd.TemperatureGenerate != nil {
		r.State.SetTemperature(types.ModeGenerate, *upd.TemperatureGenerate)
	}
	if upd.ImageCount != nil {
		r.State.SetImageCount(*upd.ImageCount)
	}
	if upd.Instruction != nil {
		r.State.SetInstruction(*upd.Instruction)
	}
	if upd.Description != nil {
		r.State.SetDescription(*upd.Description)
	}
	if upd.InputImages != nil {
		r.State.SetInputImages(upd.InputImages)
	}
	if upd.AspectRatio != nil {
		r.State.SetAspectRatio(*upd.AspectRatio)
	}
	if upd.Resolution != nil {
		r.State.SetResolution(*upd.Resolution)
	}
	if upd.AutoConcurrency != nil {
		r.State.SetAutoConcurrency(*upd.AutoConcurrency)
	}
	r.handleState(c)
}

func (r *Router) handleSetCredential(c *gin.Context) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.APIKey == "" {
		fail(c, http.StatusBadRequest, "请提供 api_key")
		return
	}
	provider := c.Param("provider")
	pcap, ok := r.Caps.Provider(provider)
	if !ok {
		fail(c, http.StatusNotFound, "未知的服务商: "+provider)
		return
	}
	r.State.SetCredential(provider, body.APIKey)
	c.JSON(http.StatusOK, gin.H{"success": true, "provider": pcap.ID})
}

func (r *Router) handleClearCredential(c *gin.Context) {
	r.State.ClearCredential(c.Param("provider"))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (r *Router) handleRun(c *gin.Context) {
	var body struct {
		Mode   string `json:"mode"`
		Stream *bool  `json:"stream"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}
	mode, ok := types.ParseMode(body.Mode)
	if !ok {
		fail(c, http.StatusBadRequest, "mode 取值非法: "+body.Mode)
		return
	}
	if r.Auto.Running() {
		fail(c, http.StatusConflict, "AUTO 模式运行中，请先停止")
		return
	}
	useStream := true
	if body.Stream != nil {
		useStream = *body.Stream
	}
	// 手动模式是一次离散任务：整体替换画廊，而不是追加。
	result, err := r.Exec.Run(c.Request.Context(), mode, task.Options{UseStream: useStream})
	if err != nil {
		if types.IsValidationError(err) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	r.Gallery.Replace(result.Images)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"success":        result.Success,
		"images":         result.Images,
		"total_received": result.TotalReceived,
		"error":          result.Err,
	})
}

func (r *Router) handleAutoStart(c *gin.Context) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}
	mode, ok := types.ParseMode(body.Mode)
	if !ok {
		fail(c, http.StatusBadRequest, "mode 取值非法: "+body.Mode)
		return
	}
	// AUTO 循环活在应用生命周期里，这次请求的 ctx 只管响应本身。
	if err := r.Auto.Start(mode); err != nil {
		fail(c, http.StatusConflict, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": r.Auto.Status()})
}

func (r *Router) handleAutoStop(c *gin.Context) {
	r.Auto.Stop()
	c.JSON(http.StatusOK, gin.H{"success": true, "status": r.Auto.Status()})
}

func (r *Router) handleAutoStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": r.Auto.Status()})
}

func (r *Router) handleFeed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "entries": r.Gallery.Entries()})
}

func (r *Router) handleHistory(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := r.Log.Recent(limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "records": records})
}

func (r *Router) handlePromptList(c *gin.Context) {
	opts := prompts.ListOptions{
		Query:   c.Query("q"),
		Sort:    c.Query("sort"),
		TagMode: c.Query("tag_mode"),
	}
	if tags := c.Query("tags"); tags != "" {
		opts.Tags = splitTags(tags)
	}
	list, err := r.Prompts.List(c.Request.Context(), opts)
	if err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prompts": list, "count": len(list)})
}

func (r *Router) handlePromptCreate(c *gin.Context) {
	var body struct {
		Label   string   `json:"label"`
		Content string   `json:"content"`
		Tags    []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}
	if body.Label == "" || body.Content == "" {
		fail(c, http.StatusBadRequest, "label 和 content 不能为空")
		return
	}
	p, err := r.Prompts.Create(c.Request.Context(), body.Label, body.Content, body.Tags)
	if err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prompt": p})
}

func (r *Router) handlePromptGet(c *gin.Context) {
	p, err := r.Prompts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prompt": p})
}

func (r *Router) handlePromptUpdate(c *gin.Context) {
	var body struct {
		Label   *string  `json:"label"`
		Content *string  `json:"content"`
		Tags    []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "请求体不是合法 JSON: "+err.Error())
		return
	}
	if body.Label == nil && body.Content == nil && body.Tags == nil {
		fail(c, http.StatusBadRequest, "没有需要更新的字段")
		return
	}
	p, err := r.Prompts.Update(c.Request.Context(), c.Param("id"), body.Label, body.Content, body.Tags)
	if err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prompt": p})
}

func (r *Router) handlePromptUse(c *gin.Context) {
	if err := r.Prompts.MarkUsed(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (r *Router) handlePromptDelete(c *gin.Context) {
	if err := r.Prompts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
