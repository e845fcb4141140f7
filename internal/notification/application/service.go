// Package application 通知的应用服务
// 发送是尽力而为的旁路动作：任何失败只记日志与落库状态，从不向调用方传播
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/p2pescrow/internal/notification/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
)

// sendTimeout 单条通知的投递超时
const sendTimeout = 5 * time.Second

// NotificationService 通知服务
type NotificationService struct {
	repo     domain.NotificationRepository
	sender   domain.Sender
	adminIDs []string
}

// NewNotificationService 创建通知服务
// adminIDs 为仲裁管理员用户列表，来自配置
func NewNotificationService(repo domain.NotificationRepository, sender domain.Sender, adminIDs []string) *NotificationService {
	return &NotificationService{
		repo:     repo,
		sender:   sender,
		adminIDs: adminIDs,
	}
}

// Notify 发送单用户通知
func (s *NotificationService) Notify(ctx context.Context, userID, kind, title, message string, metadata map[string]string) {
	notification := &domain.Notification{
		NotificationID: fmt.Sprintf("NTF-%d", idgen.GenID()),
		UserID:         userID,
		Kind:           kind,
		Title:          title,
		Message:        message,
		Metadata:       metadata,
		Status:         domain.NotificationStatusPending,
	}

	if err := s.repo.Save(ctx, notification); err != nil {
		logging.Error(ctx, "failed to persist notification",
			"user_id", userID, "kind", kind, "error", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	now := time.Now()
	if err := s.sender.Send(sendCtx, notification); err != nil {
		notification.Status = domain.NotificationStatusFailed
		notification.ErrorMessage = err.Error()
		logging.Warn(ctx, "failed to deliver notification",
			"notification_id", notification.NotificationID, "error", err)
	} else {
		notification.Status = domain.NotificationStatusSent
		notification.SentAt = &now
	}

	if err := s.repo.Save(ctx, notification); err != nil {
		logging.Error(ctx, "failed to update notification status",
			"notification_id", notification.NotificationID, "error", err)
	}
}

// NotifyAdmins 通知全部仲裁管理员
func (s *NotificationService) NotifyAdmins(ctx context.Context, kind, title, message string, metadata map[string]string) {
	for _, adminID := range s.adminIDs {
		s.Notify(ctx, adminID, kind, title, message, metadata)
	}
}

// ListNotifications 用户通知列表，新通知在前
func (s *NotificationService) ListNotifications(ctx context.Context, userID string, onlyUnread bool, limit, offset int) ([]*domain.Notification, int64, error) {
	return s.repo.ListByUser(ctx, userID, onlyUnread, limit, offset)
}

// MarkRead 标记通知已读
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}
