package relay

import (
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"carlens-server-go/src/configs"
	"carlens-server-go/src/core/auth"
	"carlens-server-go/src/core/image"
	"carlens-server-go/src/core/providers/vlllm"
	"carlens-server-go/src/core/utils"
	"carlens-server-go/src/core/vehicle"

	"github.com/gin-gonic/gin"
)

//go:embed templates/index.html
var templateFS embed.FS

type DefaultRelayService struct {
	logger    *utils.Logger
	config    *configs.Config
	describer Describer
	authToken *auth.AuthToken // 未启用认证时为nil
}

// NewDefaultRelayService 构造函数
func NewDefaultRelayService(config *configs.Config, describer Describer, logger *utils.Logger) (*DefaultRelayService, error) {
	service := &DefaultRelayService{
		logger:    logger,
		config:    config,
		describer: describer,
	}

	if config.Server.Auth.Enabled {
		token, err := auth.NewAuthToken(config.Server.Auth.Secret, 0)
		if err != nil {
			return nil, fmt.Errorf("初始化认证失败: %v", err)
		}
		service.authToken = token
	}

	return service, nil
}

// Start 实现 RelayService 接口，注册页面与上传路由
func (s *DefaultRelayService) Start(ctx context.Context, engine *gin.Engine) error {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return fmt.Errorf("加载页面模板失败: %v", err)
	}
	engine.SetHTMLTemplate(tmpl)

	if s.config.Web.StaticDir != "" {
		engine.Static("/public", s.config.Web.StaticDir)
	}

	engine.Use(RequestID())
	engine.GET("/", s.handleIndex)

	upload := []gin.HandlerFunc{}
	if s.authToken != nil {
		upload = append(upload, BearerAuth(s.authToken, s.logger))
	}
	upload = append(upload, s.handleUpload)
	engine.POST("/upload", upload...)

	s.logger.Info("车辆识别HTTP服务路由注册完成")
	return nil
}

// handleIndex 渲染上传页面
func (s *DefaultRelayService) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"carInfo": nil})
}

// handleUpload 接收图片、调用模型并映射回复
func (s *DefaultRelayService) handleUpload(c *gin.Context) {
	requestID := c.GetString(RequestIDKey)

	raw, err := s.readImage(c)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("[%s] 上传请求解析失败: %v", requestID, err))
		msg := MsgNoImage
		if errors.Is(err, errTooLarge) {
			msg = MsgTooLarge
		}
		s.respondError(c, http.StatusBadRequest, msg)
		return
	}

	s.logger.Debug("收到车辆识别请求", map[string]interface{}{
		"request_id": requestID,
		"image_size": len(raw),
	})

	// 客户端断开不取消上游调用
	ctx := context.WithoutCancel(c.Request.Context())
	text, err := s.describer.Describe(ctx, image.NewImageData(raw))
	if err != nil {
		s.respondFailure(c, requestID, err)
		return
	}
	s.logger.Info(fmt.Sprintf("[%s] 模型回复: %s", requestID, text))

	reply, err := vehicle.DecodeReply(text)
	if err != nil {
		s.respondFailure(c, requestID, err)
		return
	}

	switch reply.Kind {
	case vehicle.ReplyDomainError:
		s.logger.Warn(fmt.Sprintf("[%s] 模型未识别到车辆: %s", requestID, reply.Message))
		s.respondError(c, http.StatusBadRequest, reply.Message)
	case vehicle.ReplySuccess:
		s.logger.Info(fmt.Sprintf("[%s] 识别成功: %s", requestID, reply.Vehicle.Summary()))
		c.JSON(http.StatusOK, gin.H{"carInfo": carInfo(reply, raw)})
	default:
		s.respondFailure(c, requestID, vehicle.ErrUnknownReply)
	}
}

// readImage 图片只保存在内存中，请求体大小受max_upload_bytes限制
func (s *DefaultRelayService) readImage(c *gin.Context) ([]byte, error) {
	limit := s.config.Web.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	if err := c.Request.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return nil, fmt.Errorf("%w: %v", errTooLarge, err)
		}
		return nil, fmt.Errorf("%w: %v", errNoImage, err)
	}
	defer c.Request.MultipartForm.RemoveAll()

	file, _, err := c.Request.FormFile(ImageField)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoImage, err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取图片数据失败: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: 图片数据为空", errNoImage)
	}
	return raw, nil
}

// carInfo 原样保留模型回复的全部字段，并附加图片的base64编码
func carInfo(reply *vehicle.Reply, raw []byte) map[string]json.RawMessage {
	info := make(map[string]json.RawMessage, len(reply.Fields)+1)
	for k, v := range reply.Fields {
		info[k] = v
	}
	encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString(raw))
	info["imageBase64"] = encoded
	return info
}

// respondFailure 上游错误返回重试提示，其余错误返回通用信息
func (s *DefaultRelayService) respondFailure(c *gin.Context, requestID string, err error) {
	if vlllm.IsUpstreamError(err) {
		s.logger.Error(fmt.Sprintf("[%s] 上游模型服务错误: %v", requestID, err))
		s.respondError(c, http.StatusInternalServerError, MsgUpstream)
		return
	}
	s.logger.Error(fmt.Sprintf("[%s] 请求处理失败: %v", requestID, err))
	s.respondError(c, http.StatusInternalServerError, MsgInternal)
}

// respondError 返回错误响应
func (s *DefaultRelayService) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{Error: message})
}
