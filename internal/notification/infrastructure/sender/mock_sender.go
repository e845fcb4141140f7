package sender

import (
	"context"

	"github.com/wyfcoding/p2pescrow/internal/notification/domain"
	"github.com/wyfcoding/pkg/logging"
)

// MockSender 模拟发送器，仅写日志，供本地开发与测试使用
type MockSender struct{}

// NewMockSender 创建模拟发送器
func NewMockSender() domain.Sender {
	return &MockSender{}
}

// Send 发送通知（模拟实现）
func (s *MockSender) Send(ctx context.Context, n *domain.Notification) error {
	logging.Info(ctx, "sending notification",
		"sender", "MockSender",
		"notification_id", n.NotificationID,
		"user_id", n.UserID,
		"kind", n.Kind,
	)
	return nil
}
