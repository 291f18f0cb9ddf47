package image

// ImageData 图片数据结构
type ImageData struct {
	Data     string `json:"data,omitempty"`      // base64编码的图片数据
	Format   string `json:"format,omitempty"`    // 图片格式：jpeg, png, webp, gif, bmp, tiff
	MimeType string `json:"mime_type,omitempty"` // 发送给模型的内容类型
}
