package sender

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wyfcoding/p2pescrow/internal/notification/domain"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
)

// KafkaSender 将通知指令发送到 Kafka，由下游消费者（站内信推送、邮件/短信网关）执行投递。
type KafkaSender struct {
	producer *kafka.Producer
	topic    string
}

// deliveryCommand 发送到 Kafka 的统一指令格式
type deliveryCommand struct {
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id"`
	Kind           string            `json:"kind"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NewKafkaSender 创建 Kafka 发送器
func NewKafkaSender(producer *kafka.Producer, topic string) domain.Sender {
	return &KafkaSender{
		producer: producer,
		topic:    topic,
	}
}

// Send 将通知推送到消息队列
func (s *KafkaSender) Send(ctx context.Context, n *domain.Notification) error {
	cmd := deliveryCommand{
		NotificationID: n.NotificationID,
		UserID:         n.UserID,
		Kind:           n.Kind,
		Title:          n.Title,
		Message:        n.Message,
		Metadata:       n.Metadata,
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery command: %w", err)
	}

	// 使用 UserID 做 Key 保证同一接收者的时序性
	return s.producer.PublishToTopic(ctx, s.topic, []byte(n.UserID), payload)
}
