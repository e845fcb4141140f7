// Package messaging 交易领域事件的 Outbox 发布实现
package messaging

import (
	"context"
	"fmt"

	"github.com/wyfcoding/p2pescrow/internal/trade/domain"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"gorm.io/gorm"
)

// outboxPublisher 事件随业务事务落库，由 outbox 中继异步投递
type outboxPublisher struct {
	manager *outbox.Manager
}

// NewOutboxPublisher 创建交易事件发布者
func NewOutboxPublisher(manager *outbox.Manager) domain.EventPublisher {
	return &outboxPublisher{manager: manager}
}

// PublishInTx 在事务中发布事件
func (p *outboxPublisher) PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error {
	gormTx, ok := tx.(*gorm.DB)
	if !ok {
		return fmt.Errorf("tx must be *gorm.DB, got %T", tx)
	}
	return p.manager.PublishInTx(ctx, gormTx, topic, key, event)
}
