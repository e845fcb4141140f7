// Package domain 通知的领域模型
package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotificationNotFound 通知不存在
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationStatus 通知状态
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// Notification 通知实体
// 通知为尽力而为的旁路输出，发送失败不回滚业务事务
type Notification struct {
	gorm.Model
	// 通知 ID (业务主键)
	NotificationID string `gorm:"column:notification_id;type:varchar(32);uniqueIndex;not null" json:"notification_id"`
	// 接收用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 业务类型（trade_created, payment_sent, trade_disputed ...）
	Kind string `gorm:"column:kind;type:varchar(50);index;not null" json:"kind"`
	// 标题
	Title string `gorm:"column:title;type:varchar(100);not null" json:"title"`
	// 内容
	Message string `gorm:"column:message;type:text" json:"message"`
	// 业务上下文（trade_id, offer_id ...）
	Metadata map[string]string `gorm:"column:metadata;type:varchar(1024);serializer:json" json:"metadata"`
	// 状态
	Status NotificationStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// 是否已读
	Read bool `gorm:"column:is_read;default:false;not null" json:"read"`
	// 发送时间
	SentAt *time.Time `gorm:"column:sent_at" json:"sent_at"`
	// 错误信息
	ErrorMessage string `gorm:"column:error_message;type:text" json:"error_message"`
}

// NotificationRepository 通知仓储接口
type NotificationRepository interface {
	Save(ctx context.Context, notification *Notification) error
	Get(ctx context.Context, notificationID string) (*Notification, error)
	// ListByUser 用户通知列表，新通知在前
	ListByUser(ctx context.Context, userID string, onlyUnread bool, limit, offset int) ([]*Notification, int64, error)
	// MarkRead 标记已读，仅限接收者本人
	MarkRead(ctx context.Context, userID, notificationID string) error
}

// Sender 通知投递接口，具体通道由基础设施层实现
type Sender interface {
	Send(ctx context.Context, notification *Notification) error
}
