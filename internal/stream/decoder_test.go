package stream

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"imgchat/internal/types"
)

func collectSink(out *[]types.ImageRecord) Sink {
	return SinkFunc(func(r types.ImageRecord) {
		*out = append(*out, r)
	})
}

const twoFrames = "data: {\"filename\": \"a.png\", \"download_url\": \"/download/a.png\"}\n" +
	"data: {\"filename\": \"b.png\", \"download_url\": \"/download/b.png\"}\n" +
	"data: [DONE]\n"

func TestDecodeWholeStream(t *testing.T) {
	var got []types.ImageRecord
	d := NewDecoder(collectSink(&got), "test")
	d.Feed([]byte(twoFrames))
	d.Flush()

	res := d.Result()
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TotalReceived)
	assert.Empty(t, res.Err)
	assert.Len(t, got, 2)
	assert.Equal(t, "a.png", got[0].Filename)
	assert.Equal(t, "b.png", got[1].Filename)
}

// 网络 chunk 可能在任意字节处切开，帧边界和 chunk 边界无关。
func TestDecodeArbitraryChunkSplits(t *testing.T) {
	for size := 1; size <= len(twoFrames); size++ {
		var got []types.ImageRecord
		d := NewDecoder(collectSink(&got), "test")
		for off := 0; off < len(twoFrames); off += size {
			end := off + size
			if end > len(twoFrames) {
				end = len(twoFrames)
			}
			d.Feed([]byte(twoFrames[off:end]))
		}
		d.Flush()

		res := d.Result()
		assert.True(t, res.Success, "chunk size %d", size)
		assert.Equal(t, 2, res.TotalReceived, "chunk size %d", size)
		assert.Equal(t, "a.png", got[0].Filename)
		assert.Equal(t, "b.png", got[1].Filename)
	}
}

func TestErrorFrameFailsStreamButKeepsImages(t *testing.T) {
	input := "data: {\"filename\": \"a.png\", \"download_url\": \"/a\"}\n" +
		"data: {\"error\": \"配额已用完\"}\n" +
		"data: {\"filename\": \"b.png\", \"download_url\": \"/b\"}\n" +
		"data: [DONE]\n"

	var got []types.ImageRecord
	d := NewDecoder(collectSink(&got), "test")
	d.Feed([]byte(input))
	d.Flush()

	res := d.Result()
	assert.False(t, res.Success)
	assert.Equal(t, "配额已用完", res.Err)
	// 错误帧之后仍然排空，已收图片不作废。
	assert.Len(t, got, 2)
	assert.Equal(t, 2, res.TotalReceived)
}

func TestFirstErrorWins(t *testing.T) {
	input := "data: {\"error\": \"first\"}\ndata: {\"error\": \"second\"}\n"
	d := NewDecoder(nil, "test")
	d.Feed([]byte(input))
	d.Flush()
	assert.Equal(t, "first", d.Result().Err)
}

func TestMalformedFrameIsSkipped(t *testing.T) {
	input := "data: {not json at all\n" +
		"data: {\"filename\": \"a.png\", \"download_url\": \"/a\"}\n" +
		"data: [DONE]\n"

	var got []types.ImageRecord
	d := NewDecoder(collectSink(&got), "test")
	d.Feed([]byte(input))
	d.Flush()

	res := d.Result()
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.TotalReceived)
	assert.Len(t, got, 1)
}

func TestEmptyStreamIsFailure(t *testing.T) {
	d := NewDecoder(nil, "test")
	d.Feed([]byte("data: [DONE]\n"))
	d.Flush()

	res := d.Result()
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
	assert.Equal(t, 0, res.TotalReceived)
}

func TestFramesAfterDoneAreIgnored(t *testing.T) {
	input := "data: [DONE]\n" +
		"data: {\"filename\": \"late.png\", \"download_url\": \"/late\"}\n"
	var got []types.ImageRecord
	d := NewDecoder(collectSink(&got), "test")
	d.Feed([]byte(input))
	d.Flush()
	assert.Empty(t, got)
}

func TestCRLFAndBlankLines(t *testing.T) {
	input := "data: {\"filename\": \"a.png\", \"download_url\": \"/a\"}\r\n" +
		"\r\n" +
		": keepalive comment\n" +
		"data: [DONE]\r\n"
	var got []types.ImageRecord
	d := NewDecoder(collectSink(&got), "test")
	d.Feed([]byte(input))
	d.Flush()

	res := d.Result()
	assert.True(t, res.Success)
	assert.Len(t, got, 1)
}

func TestTrailingLineWithoutNewline(t *testing.T) {
	input := "data: {\"filename\": \"a.png\", \"download_url\": \"/a\"}"
	var got []types.ImageRecord
	d := NewDecoder(collectSink(&got), "test")
	d.Feed([]byte(input))
	d.Flush()
	assert.Len(t, got, 1)
	assert.True(t, d.Result().Success)
}

func TestDecodeBody(t *testing.T) {
	var got []types.ImageRecord
	res := DecodeBody(context.Background(), strings.NewReader(twoFrames), collectSink(&got), "test")
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.TotalReceived)
	assert.Len(t, got, 2)
}
