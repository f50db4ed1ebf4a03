package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeFetcher struct {
	raw []byte
	err error
}

func (f *fakeFetcher) FetchConfig(context.Context) ([]byte, error) {
	return f.raw, f.err
}

const validPayload = `{
  "success": true,
  "config": {
    "defaultProvider": "google",
    "defaultTemperature": {"edit": 0.5, "generate": 0.6},
    "providers": {
      "google": {
        "name": "Google Gemini",
        "apiKeyPrefix": "AIza",
        "defaultModel": "m1",
        "models": [
          {"value": "m1", "text": "Model One"},
          {"value": "m2", "text": "Model Two"}
        ],
        "imageOptions": {
          "aspect_ratios": [{"value": "1:1", "text": "1:1"}],
          "resolutions": [{"value": "1K", "text": "1K"}],
          "model_support": {
            "m1": {"aspect_ratio": true, "resolution": true},
            "m2": {"aspect_ratio": true, "resolution": false}
          }
        }
      },
      "openrouter": {
        "name": "OpenRouter",
        "defaultModel": "m1",
        "models": [{"value": "m1", "text": "Model One"}]
      }
    }
  }
}`

func TestLoadReplacesTable(t *testing.T) {
	s := NewStore()
	res := s.Load(context.Background(), &fakeFetcher{raw: []byte(validPayload)})
	assert.True(t, res.Success)
	assert.False(t, res.UsingFallback)
	assert.False(t, s.UsingFallback())

	table := s.Table()
	assert.Equal(t, "google", table.DefaultProvider)
	assert.Equal(t, 0.5, table.DefaultTemperature.Edit)
	assert.Len(t, table.Providers, 2)

	p, ok := s.Provider("google")
	assert.True(t, ok)
	assert.Equal(t, "google", p.ID)
	assert.True(t, p.HasModel("m2"))
}

func TestLoadFetchErrorFallsBack(t *testing.T) {
	s := NewStore()
	res := s.Load(context.Background(), &fakeFetcher{err: errors.New("connection refused")})
	assert.True(t, res.Success)
	assert.True(t, res.UsingFallback)
	assert.True(t, s.UsingFallback())

	// 退回内置表后会话照常可用。
	table := s.Table()
	assert.Equal(t, "google", table.DefaultProvider)
	assert.Contains(t, table.Providers, "tuzi")
}

func TestLoadRejectsBackendFailure(t *testing.T) {
	s := NewStore()
	res := s.Load(context.Background(), &fakeFetcher{raw: []byte(`{"success": false, "error": "内部错误"}`)})
	assert.True(t, res.UsingFallback)
}

func TestLoadRejectsSchemaViolation(t *testing.T) {
	// models 为空数组不满足结构约束。
	payload := `{"success": true, "config": {"providers": {"google": {"defaultModel": "x", "models": []}}}}`
	s := NewStore()
	res := s.Load(context.Background(), &fakeFetcher{raw: []byte(payload)})
	assert.True(t, res.UsingFallback)
}

func TestLoadRejectsDefaultModelOutsideList(t *testing.T) {
	payload := `{"success": true, "config": {"providers": {"google": {
		"defaultModel": "missing",
		"models": [{"value": "m1", "text": "Model One"}]
	}}}}`
	s := NewStore()
	res := s.Load(context.Background(), &fakeFetcher{raw: []byte(payload)})
	assert.True(t, res.UsingFallback)
}

func TestTableBeforeLoadReturnsFallback(t *testing.T) {
	s := NewStore()
	table := s.Table()
	assert.NotEmpty(t, table.Providers)
	assert.Equal(t, "google", table.DefaultProvider)
}

func TestProviderMissReturnsFalse(t *testing.T) {
	s := NewStore()
	_, ok := s.Provider("nope")
	assert.False(t, ok)
}

// 内置表自身必须满足与远端表相同的不变量。
func TestFallbackTableInvariants(t *testing.T) {
	table := fallbackTable()
	assert.NoError(t, validateTable(table))
	for id, p := range table.Providers {
		assert.Equal(t, id, p.ID)
		assert.True(t, p.HasModel(p.DefaultModel), "provider %s default model", id)
	}
	assert.Equal(t, 0.7, table.DefaultTemperature.Edit)
	assert.Equal(t, 0.8, table.DefaultTemperature.Generate)
}
