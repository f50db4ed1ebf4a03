package types

// ImageRecord 对应后端返回的单张图片。
// 流式响应里每个 data 帧解码出一条；非流式响应在 images 数组里整体返回。
type ImageRecord struct {
	Index       int    `json:"index,omitempty"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	// base64 编码的图片数据，直接用于渲染，不落盘。
	ImageData string `json:"image_data,omitempty"`
}
