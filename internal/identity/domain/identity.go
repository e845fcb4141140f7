// Package domain 身份解析的领域模型
// 核心信任身份提供方的解析结果，不自行管理用户生命周期
package domain

import (
	"context"
	"errors"
)

// ErrUnauthenticated 请求未携带有效身份
var ErrUnauthenticated = errors.New("unauthenticated")

// Role 用户角色
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Identity 调用方身份
type Identity struct {
	ID   string
	Role Role
}

// IsAdmin 是否具备管理员（仲裁）权限
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Provider 身份提供方接口
type Provider interface {
	// CurrentUser 解析当前请求的身份，缺失或无效时返回 ErrUnauthenticated
	CurrentUser(ctx context.Context) (Identity, error)
}

type contextKey struct{}

// WithIdentity 将身份写入 context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext 从 context 中读取身份
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	if !ok || id.ID == "" {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}
