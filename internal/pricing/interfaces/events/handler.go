package events

import (
	"context"
	"encoding/json"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/p2pescrow/internal/pricing/domain"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
)

// PriceEventHandler 消费行情推送，把最新报价写入预言机缓存
type PriceEventHandler struct {
	oracle domain.Oracle
}

// NewPriceEventHandler 创建行情事件处理器
func NewPriceEventHandler(oracle domain.Oracle) *PriceEventHandler {
	return &PriceEventHandler{oracle: oracle}
}

// HandlePriceTick 处理单条行情消息
func (h *PriceEventHandler) HandlePriceTick(ctx context.Context, msg kafkago.Message) error {
	var event struct {
		Symbol    string `json:"symbol"`
		Price     string `json:"price"`
		Source    string `json:"source"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		slog.ErrorContext(ctx, "failed to unmarshal price tick", "error", err)
		return err
	}

	price, err := decimal.NewFromString(event.Price)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		slog.WarnContext(ctx, "dropping invalid price tick", "symbol", event.Symbol, "price", event.Price)
		return nil
	}

	quote := domain.NewQuote(event.Symbol, price, event.Source)
	if event.Timestamp > 0 {
		quote.Timestamp = event.Timestamp
	}
	return h.oracle.Put(ctx, quote)
}

// Subscribe 启动消费循环
func (h *PriceEventHandler) Subscribe(ctx context.Context, consumer *kafka.Consumer) {
	consumer.Start(ctx, 1, h.HandlePriceTick)
}
