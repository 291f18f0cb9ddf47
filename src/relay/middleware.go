package relay

import (
	"fmt"
	"net/http"
	"strings"

	"carlens-server-go/src/core/auth"
	"carlens-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-Id"
)

// RequestID 为每个请求分配ID，已携带的ID原样沿用
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// BearerAuth 校验 Authorization: Bearer <token>
func BearerAuth(authToken *auth.AuthToken, logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			logger.Warn(fmt.Sprintf("[%s] 缺少认证token", c.GetString(RequestIDKey)))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: MsgAuth})
			return
		}

		subject, err := authToken.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logger.Warn(fmt.Sprintf("[%s] 认证token验证失败: %v", c.GetString(RequestIDKey), err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: MsgAuth})
			return
		}

		logger.Debug(fmt.Sprintf("[%s] 认证通过: %s", c.GetString(RequestIDKey), subject))
		c.Next()
	}
}
