package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/wyfcoding/p2pescrow/internal/identity/domain"
	"github.com/wyfcoding/pkg/response"
)

// Claims JWT 负载
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTProvider 基于 JWT Bearer Token 的身份提供方实现
type JWTProvider struct {
	secret []byte
}

// NewJWTProvider 创建 JWT 身份提供方
func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret)}
}

// CurrentUser 从 context 中读取中间件解析出的身份
func (p *JWTProvider) CurrentUser(ctx context.Context) (domain.Identity, error) {
	return domain.FromContext(ctx)
}

// Parse 校验 token 并返回身份
func (p *JWTProvider) Parse(tokenString string) (domain.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return domain.Identity{}, domain.ErrUnauthenticated
	}

	role := domain.Role(claims.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	return domain.Identity{ID: claims.UserID, Role: role}, nil
}

// AuthMiddleware 解析 Bearer Token 并把身份注入请求上下文
// 核心信任此处的解析结果，下游处理器不再重复鉴权
func AuthMiddleware(provider *JWTProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			response.ErrorWithStatus(c, http.StatusUnauthorized, "missing bearer token", "")
			c.Abort()
			return
		}

		id, err := provider.Parse(tokenString)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusUnauthorized, "invalid token", "")
			c.Abort()
			return
		}

		ctx := domain.WithIdentity(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// MustIdentity 读取中间件注入的身份；仅在 AuthMiddleware 之后的路由中调用
func MustIdentity(c *gin.Context) (domain.Identity, bool) {
	id, err := domain.FromContext(c.Request.Context())
	if err != nil {
		response.ErrorWithStatus(c, http.StatusUnauthorized, "unauthenticated", "")
		return domain.Identity{}, false
	}
	return id, true
}
