package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/p2pescrow/internal/notification/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

// notificationRepository 通知仓储实现
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建并返回一个新的 notificationRepository 实例。
func NewNotificationRepository(db *gorm.DB) domain.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Save(ctx context.Context, notification *domain.Notification) error {
	db := r.getDB(ctx)
	if notification.ID == 0 {
		return db.WithContext(ctx).Create(notification).Error
	}
	return db.WithContext(ctx).Save(notification).Error
}

func (r *notificationRepository) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	var notification domain.Notification
	err := r.getDB(ctx).WithContext(ctx).
		Where("notification_id = ?", notificationID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &notification, nil
}

// ListByUser 用户通知列表，新通知在前
func (r *notificationRepository) ListByUser(ctx context.Context, userID string, onlyUnread bool, limit, offset int) ([]*domain.Notification, int64, error) {
	db := r.getDB(ctx).WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", userID)
	if onlyUnread {
		db = db.Where("is_read = ?", false)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []*domain.Notification
	if err := db.Order("id DESC").Limit(limit).Offset(offset).Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

// MarkRead 标记已读；按 user_id 约束防止越权
func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	result := r.getDB(ctx).WithContext(ctx).Model(&domain.Notification{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
