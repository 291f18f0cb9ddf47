package relay

import "errors"

// 返回给调用方的错误信息
const (
	MsgNoImage  = "No image file provided"
	MsgTooLarge = "Image file too large"
	MsgUpstream = "A server error occurred at the model provider's API. Please retry later."
	MsgInternal = "An unexpected error occurred on the server."
	MsgAuth     = "Invalid or expired token"
)

// ImageField multipart表单中的图片字段名
const ImageField = "image"

var (
	errNoImage  = errors.New("no image file in request")
	errTooLarge = errors.New("request body too large")
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error string `json:"error"`
}
