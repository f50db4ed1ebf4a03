// Package state 持有会话内的应用状态：当前 provider/model、表单值、
// 凭证与能力表句柄。状态由应用根对象创建并注入协作方，所有修改都
// 经过这里的 setter（单写者），setter 同时把允许列表内的原始值镜像
// 到持久化偏好存储（尽力而为，失败只记日志）。
package state

import (
	"strconv"
	"strings"
	"sync"

	"imgchat/internal/capability"
	"imgchat/internal/logger"
	"imgchat/internal/prefs"
	"imgchat/internal/types"
)

// 持久化允许列表：只有这些控件值会写入偏好库。
const (
	keyProvider        = "provider"
	keyTempEdit        = "temperature_edit"
	keyTempGenerate    = "temperature_generate"
	keyImageCount      = "image_count"
	keyAspectRatio     = "aspect_ratio"
	keyResolution      = "resolution"
	keyAutoConcurrency = "auto_concurrency"

	// 自由文本走会话存储，不落盘。
	sessionKeyInstruction = "instruction"
	sessionKeyDescription = "description"
)

// Snapshot 是状态的一致性读视图。
type Snapshot struct {
	Provider            string
	Model               string
	Mode                types.Mode
	TemperatureEdit     float64
	TemperatureGenerate float64
	ImageCount          int
	Instruction         string
	Description         string
	InputImages         []string
	AspectRatio         string
	Resolution          string
	AutoConcurrency     int
	Credentials         map[string]string
	AspectRatioEnabled  bool
	ResolutionEnabled   bool
}

// Credential 返回当前 provider 的 API Key，没有则为空串。
func (s Snapshot) Credential() string {
	return s.Credentials[s.Provider]
}

// AppState 见包注释。内部用互斥锁保护：HTTP 接口并发读，写是同步调用。
type AppState struct {
	caps    *capability.Store
	store   *prefs.Store
	session *prefs.SessionStore

	mu sync.Mutex

	provider        string
	model           string
	mode            types.Mode
	tempEdit        float64
	tempGenerate    float64
	imageCount      int
	inputImages     []string
	aspectRatio     string
	resolution      string
	autoConcurrency int
	maxConcurrency  int
	credentials     map[string]string
	modelPrefs      map[string]string
}

// New 构造初始状态。store 可以为 nil（偏好库打不开时降级为纯内存）。
func New(caps *capability.Store, store *prefs.Store, session *prefs.SessionStore, maxConcurrency int) *AppState {
	if session == nil {
		session = prefs.NewSessionStore()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	table := caps.Table()
	provider := table.DefaultProvider
	if provider == "" {
		provider = "google"
	}
	st := &AppState{
		caps:            caps,
		store:           store,
		session:         session,
		provider:        provider,
		mode:            types.ModeEdit,
		tempEdit:        table.DefaultTemperature.Edit,
		tempGenerate:    table.DefaultTemperature.Generate,
		imageCount:      1,
		autoConcurrency: 2,
		maxConcurrency:  maxConcurrency,
		credentials:     map[string]string{},
		modelPrefs:      map[string]string{},
	}
	if p, ok := table.Providers[provider]; ok {
		st.model = p.DefaultModel
	}
	st.applyGatesLocked()
	return st
}

// Restore 从偏好库恢复允许列表内的值，然后重算能力门控。
// 任何一项读取失败都只降级为默认值。
func (s *AppState) Restore() {
	if s.store == nil {
		return
	}
	settings, err := s.store.Settings()
	if err != nil {
		logger.Warnf("读取偏好失败，使用默认值: %v", err)
		settings = map[string]string{}
	}
	modelPrefs, err := s.store.ModelPrefs()
	if err != nil {
		logger.Warnf("读取模型偏好失败: %v", err)
		modelPrefs = map[string]string{}
	}
	creds, err := s.store.Credentials()
	if err != nil {
		logger.Warnf("读取凭证失败: %v", err)
		creds = map[string]string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelPrefs = modelPrefs
	s.credentials = creds
	if v := settings[keyProvider]; v != "" {
		if _, ok := s.caps.Table().Providers[v]; ok {
			s.provider = v
		}
	}
	s.model = s.preferredModelLocked(s.provider)
	if v, err := strconv.ParseFloat(settings[keyTempEdit], 64); err == nil {
		s.tempEdit = v
	}
	if v, err := strconv.ParseFloat(settings[keyTempGenerate], 64); err == nil {
		s.tempGenerate = v
	}
	if v, err := strconv.Atoi(settings[keyImageCount]); err == nil && v >= 1 && v <= 4 {
		s.imageCount = v
	}
	if v := settings[keyAspectRatio]; v != "" {
		s.aspectRatio = v
	}
	if v := settings[keyResolution]; v != "" {
		s.resolution = v
	}
	if v, err := strconv.Atoi(settings[keyAutoConcurrency]); err == nil && v >= 1 {
		s.autoConcurrency = min(v, s.maxConcurrency)
	}
	s.applyGatesLocked()
	logger.Infof("偏好恢复完成: provider=%s model=%s", s.provider, s.model)
}

// preferredModelLocked 返回 provider 上次选择的模型，无记录或已失效时取默认模型。
func (s *AppState) preferredModelLocked(provider string) string {
	p, ok := s.caps.Table().Providers[provider]
	if !ok {
		return ""
	}
	if m := s.modelPrefs[provider]; m != "" && p.HasModel(m) {
		return m
	}
	return p.DefaultModel
}

// applyGatesLocked 按能力表重算门控，关掉的选项连值一起清空。幂等。
func (s *AppState) applyGatesLocked() {
	table := s.caps.Table()
	if !table.AspectRatioEnabled(s.provider, s.model) {
		s.aspectRatio = ""
	}
	if !table.ResolutionEnabled(s.provider, s.model) {
		s.resolution = ""
	}
}

func (s *AppState) persist(key, value string) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveSetting(key, value); err != nil {
		logger.Warnf("写入偏好 %s 失败: %v", key, err)
	}
}

// SetProvider 切换 provider：未知 id 记警告并保持原状。
// 切换后模型回到该 provider 的偏好/默认模型，并重算门控。
func (s *AppState) SetProvider(id string) {
	if _, ok := s.caps.Provider(id); !ok {
		return
	}
	s.mu.Lock()
	s.provider = id
	s.model = s.preferredModelLocked(id)
	s.applyGatesLocked()
	s.mu.Unlock()
	s.persist(keyProvider, id)
}

// SetModel 切换模型：必须在当前 provider 的列表内。
func (s *AppState) SetModel(model string) {
	s.mu.Lock()
	p, ok := s.caps.Table().Providers[s.provider]
	if !ok || !p.HasModel(model) {
		s.mu.Unlock()
		logger.Warnf("模型 %q 不在 provider %s 的列表中，忽略", model, s.provider)
		return
	}
	s.model = model
	s.modelPrefs[s.provider] = model
	provider := s.provider
	s.applyGatesLocked()
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.SaveModelPref(provider, model); err != nil {
			logger.Warnf("写入模型偏好失败: %v", err)
		}
	}
}

// SetMode 切换任务模式。
func (s *AppState) SetMode(mode types.Mode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// SetTemperature 设置某模式的温度。
func (s *AppState) SetTemperature(mode types.Mode, v float64) {
	s.mu.Lock()
	if mode == types.ModeGenerate {
		s.tempGenerate = v
	} else {
		s.tempEdit = v
	}
	s.mu.Unlock()
	key := keyTempEdit
	if mode == types.ModeGenerate {
		key = keyTempGenerate
	}
	s.persist(key, strconv.FormatFloat(v, 'f', -1, 64))
}

// SetImageCount 设置手动模式的出图数量（1-4，越界忽略）。
func (s *AppState) SetImageCount(n int) {
	if n < 1 || n > 4 {
		logger.Warnf("图像数量 %d 越界，忽略", n)
		return
	}
	s.mu.Lock()
	s.imageCount = n
	s.mu.Unlock()
	s.persist(keyImageCount, strconv.Itoa(n))
}

// SetInstruction 更新编辑指令草稿（会话存储）。
func (s *AppState) SetInstruction(text string) {
	s.session.Set(sessionKeyInstruction, text)
}

// SetDescription 更新生成描述草稿（会话存储）。
func (s *AppState) SetDescription(text string) {
	s.session.Set(sessionKeyDescription, text)
}

// SetInputImages 替换编辑模式的输入图片列表。
func (s *AppState) SetInputImages(paths []string) {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			cleaned = append(cleaned, p)
		}
	}
	s.mu.Lock()
	s.inputImages = cleaned
	s.mu.Unlock()
}

// SetAspectRatio 设置宽高比；门控关闭时为空操作。
func (s *AppState) SetAspectRatio(v string) {
	s.mu.Lock()
	if v != "" && !s.caps.Table().AspectRatioEnabled(s.provider, s.model) {
		s.mu.Unlock()
		logger.Warnf("当前模型不支持宽高比参数，忽略 %q", v)
		return
	}
	s.aspectRatio = v
	s.mu.Unlock()
	s.persist(keyAspectRatio, v)
}

// SetResolution 设置分辨率；门控关闭时为空操作。
func (s *AppState) SetResolution(v string) {
	s.mu.Lock()
	if v != "" && !s.caps.Table().ResolutionEnabled(s.provider, s.model) {
		s.mu.Unlock()
		logger.Warnf("当前模型不支持分辨率参数，忽略 %q", v)
		return
	}
	s.resolution = v
	s.mu.Unlock()
	s.persist(keyResolution, v)
}

// SetAutoConcurrency 设置 AUTO 模式每轮请求的图片数（1..max）。
func (s *AppState) SetAutoConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	if n > s.maxConcurrency {
		n = s.maxConcurrency
	}
	s.autoConcurrency = n
	s.mu.Unlock()
	s.persist(keyAutoConcurrency, strconv.Itoa(n))
}

// SetCredential 保存某 provider 的 API Key。
func (s *AppState) SetCredential(provider, apiKey string) {
	s.mu.Lock()
	s.credentials[provider] = apiKey
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.SaveCredential(provider, apiKey); err != nil {
			logger.Warnf("写入凭证失败: %v", err)
		}
	}
}

// ClearCredential 清除某 provider 的 API Key。
func (s *AppState) ClearCredential(provider string) {
	s.mu.Lock()
	delete(s.credentials, provider)
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.DeleteCredential(provider); err != nil {
			logger.Warnf("清除凭证失败: %v", err)
		}
	}
}

// Snapshot 返回状态的一致性拷贝。
func (s *AppState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := s.caps.Table()
	creds := make(map[string]string, len(s.credentials))
	for k, v := range s.credentials {
		creds[k] = v
	}
	images := make([]string, len(s.inputImages))
	copy(images, s.inputImages)
	return Snapshot{
		Provider:            s.provider,
		Model:               s.model,
		Mode:                s.mode,
		TemperatureEdit:     s.tempEdit,
		TemperatureGenerate: s.tempGenerate,
		ImageCount:          s.imageCount,
		Instruction:         s.session.Get(sessionKeyInstruction),
		Description:         s.session.Get(sessionKeyDescription),
		InputImages:         images,
		AspectRatio:         s.aspectRatio,
		Resolution:          s.resolution,
		AutoConcurrency:     s.autoConcurrency,
		Credentials:         creds,
		AspectRatioEnabled:  table.AspectRatioEnabled(s.provider, s.model),
		ResolutionEnabled:   table.ResolutionEnabled(s.provider, s.model),
	}
}

// RefreshGates 在能力表替换后重算门控（幂等）。
func (s *AppState) RefreshGates() {
	s.mu.Lock()
	s.applyGatesLocked()
	s.mu.Unlock()
}
