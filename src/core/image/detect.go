package image

import (
	"bytes"
	"encoding/base64"
	"image"

	_ "image/gif"  // 注册GIF解码器
	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器

	_ "golang.org/x/image/bmp"  // 注册BMP解码器
	_ "golang.org/x/image/tiff" // 注册TIFF解码器
	_ "golang.org/x/image/webp" // 注册WEBP解码器
)

// DefaultFormat 无法识别时使用的格式
const DefaultFormat = "jpeg"

// 图片格式魔数签名，解码头部失败时的后备判断
var imageSignatures = []struct {
	format string
	header []byte
}{
	{"jpeg", []byte{0xFF, 0xD8}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
	{"bmp", []byte{0x42, 0x4D}},
	{"tiff", []byte{0x49, 0x49, 0x2A, 0x00}},
	{"tiff", []byte{0x4D, 0x4D, 0x00, 0x2A}},
}

// DetectFormat 检测图片格式，只用于给上游请求打上正确的内容类型，不做内容校验
func DetectFormat(data []byte) string {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return format
	}
	if isWebP(data) {
		return "webp"
	}
	for _, sig := range imageSignatures {
		if bytes.HasPrefix(data, sig.header) {
			return sig.format
		}
	}
	return DefaultFormat
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}

// MimeType 格式对应的内容类型
func MimeType(format string) string {
	return "image/" + format
}

// NewImageData 从原始字节构造ImageData
func NewImageData(raw []byte) ImageData {
	format := DetectFormat(raw)
	return ImageData{
		Data:     base64.StdEncoding.EncodeToString(raw),
		Format:   format,
		MimeType: MimeType(format),
	}
}
