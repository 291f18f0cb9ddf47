package relay

import (
	"context"

	"carlens-server-go/src/core/image"

	"github.com/gin-gonic/gin"
)

// RelayService 定义车辆识别服务接口
type RelayService interface {
	// 将路由注册到 engine
	Start(ctx context.Context, engine *gin.Engine) error
}

// Describer 推理客户端，返回已清理代码块标记的模型回复
type Describer interface {
	Describe(ctx context.Context, img image.ImageData) (string, error)
}
