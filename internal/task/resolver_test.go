package task

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"imgchat/internal/capability"
	"imgchat/internal/prefs"
	"imgchat/internal/state"
	"imgchat/internal/types"
)

func newTestState() (*state.AppState, *capability.Store) {
	caps := capability.NewStore()
	st := state.New(caps, nil, prefs.NewSessionStore(), 8)
	return st, caps
}

func TestResolveRequiresAPIKey(t *testing.T) {
	st, caps := newTestState()
	r := NewResolver(st, caps)

	_, err := r.Resolve(types.ModeGenerate)
	assert.Error(t, err)
	assert.True(t, types.IsValidationError(err))
	assert.Contains(t, err.Error(), "API Key")
}

func TestResolveEditRequiresImagesAndInstruction(t *testing.T) {
	st, caps := newTestState()
	st.SetCredential("google", "AIza-test")
	r := NewResolver(st, caps)

	_, err := r.Resolve(types.ModeEdit)
	assert.True(t, types.IsValidationError(err))
	assert.Contains(t, err.Error(), "图片")

	st.SetInputImages([]string{"/tmp/a.png"})
	_, err = r.Resolve(types.ModeEdit)
	assert.True(t, types.IsValidationError(err))
	assert.Contains(t, err.Error(), "指令")

	st.SetInstruction("把背景换成蓝色")
	p, err := r.Resolve(types.ModeEdit)
	assert.NoError(t, err)
	assert.Equal(t, types.ModeEdit, p.Mode)
	assert.Equal(t, []string{"/tmp/a.png"}, p.InputImages)
	assert.Equal(t, "把背景换成蓝色", p.Prompt())
	assert.Equal(t, 0.7, p.Temperature)
}

func TestResolveGenerateRequiresDescription(t *testing.T) {
	st, caps := newTestState()
	st.SetCredential("google", "AIza-test")
	r := NewResolver(st, caps)

	_, err := r.Resolve(types.ModeGenerate)
	assert.True(t, types.IsValidationError(err))
	assert.Contains(t, err.Error(), "描述")

	st.SetDescription("一只在月球上的猫")
	p, err := r.Resolve(types.ModeGenerate)
	assert.NoError(t, err)
	assert.Equal(t, "一只在月球上的猫", p.Prompt())
	assert.Equal(t, 0.8, p.Temperature)
	assert.Empty(t, p.InputImages)
}

func TestResolveAttachesImageParamsOnlyWhenGated(t *testing.T) {
	st, caps := newTestState()
	st.SetCredential("google", "AIza-test")
	st.SetDescription("test")
	r := NewResolver(st, caps)

	// 默认模型 gemini-3-pro 两个门都开。
	st.SetAspectRatio("16:9")
	st.SetResolution("2K")
	p, err := r.Resolve(types.ModeGenerate)
	assert.NoError(t, err)
	assert.Equal(t, "16:9", p.AspectRatio)
	assert.Equal(t, "2K", p.Resolution)

	// flash 档模型关闭分辨率门，切换后值已被状态层清空。
	st.SetModel("google/gemini-2.5-flash-image")
	p, err = r.Resolve(types.ModeGenerate)
	assert.NoError(t, err)
	assert.Empty(t, p.Resolution)
	assert.Equal(t, "16:9", p.AspectRatio)
}

func TestResolveNeverMutatesState(t *testing.T) {
	st, caps := newTestState()
	st.SetCredential("google", "AIza-test")
	st.SetDescription("test")
	r := NewResolver(st, caps)

	before := st.Snapshot()
	_, err := r.Resolve(types.ModeGenerate)
	assert.NoError(t, err)
	after := st.Snapshot()
	assert.Equal(t, before.Provider, after.Provider)
	assert.Equal(t, before.Model, after.Model)
	assert.Equal(t, before.ImageCount, after.ImageCount)
}
