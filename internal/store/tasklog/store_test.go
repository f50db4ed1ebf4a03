package tasklog

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"imgchat/internal/types"
)

func openTemp(t *testing.T, limit int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tasklog.db"), limit)
	assert.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openTemp(t, 100)
	assert.NoError(t, s.Append(Record{
		TraceID:   "t1",
		Mode:      types.ModeGenerate,
		Provider:  "google",
		Model:     "google/gemini-3-pro-image-preview",
		Requested: 2,
		Received:  2,
		Success:   true,
		Auto:      true,
		Images:    []string{"/download/a.png", "/download/b.png"},
	}))
	assert.NoError(t, s.Append(Record{
		TraceID:  "t2",
		Mode:     types.ModeEdit,
		Provider: "tuzi",
		Model:    "gemini-2.5-flash-image",
		Error:    "后端超时",
	}))

	records, err := s.Recent(10)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	// 倒序：最新在前。
	assert.Equal(t, "t2", records[0].TraceID)
	assert.Equal(t, "后端超时", records[0].Error)
	assert.False(t, records[0].Success)
	assert.Equal(t, "t1", records[1].TraceID)
	assert.True(t, records[1].Success)
	assert.True(t, records[1].Auto)
	assert.Equal(t, []string{"/download/a.png", "/download/b.png"}, records[1].Images)
	assert.NotZero(t, records[1].Timestamp)
}

func TestAppendPrunesBeyondLimit(t *testing.T) {
	s := openTemp(t, 5)
	for i := 1; i <= 8; i++ {
		assert.NoError(t, s.Append(Record{TraceID: fmt.Sprintf("t%d", i), Mode: types.ModeGenerate}))
	}
	records, err := s.Recent(100)
	assert.NoError(t, err)
	assert.Len(t, records, 5)
	assert.Equal(t, "t8", records[0].TraceID)
	assert.Equal(t, "t4", records[4].TraceID)
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Append(Record{TraceID: "x"}))
	records, err := s.Recent(10)
	assert.NoError(t, err)
	assert.Nil(t, records)
	assert.NoError(t, s.Close())
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", 10)
	assert.Error(t, err)
}
