package source

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/p2pescrow/internal/pricing/domain"
)

// StaticSource 固定价格表报价源，来自配置，供开发与测试环境使用
// 生产部署用行情消费端推送覆盖缓存，回源只是兜底
type StaticSource struct {
	prices map[string]decimal.Decimal
}

// NewStaticSource 创建固定价格表报价源
func NewStaticSource(prices map[string]string) (*StaticSource, error) {
	parsed := make(map[string]decimal.Decimal, len(prices))
	for symbol, raw := range prices {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		parsed[symbol] = price
	}
	return &StaticSource{prices: parsed}, nil
}

// Fetch 返回配置中的固定价格
func (s *StaticSource) Fetch(_ context.Context, symbol string) (*domain.Quote, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return nil, domain.ErrSymbolNotFound
	}
	return domain.NewQuote(symbol, price, "static"), nil
}
