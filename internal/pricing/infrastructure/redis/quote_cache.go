package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/p2pescrow/internal/pricing/domain"
)

// QuoteCache 带 TTL 的 Redis 报价缓存
// 缓存未命中时回源并写回；回源失败向上返回，兑换路径据此拒绝服务而非使用陈旧价格
type QuoteCache struct {
	client redis.UniversalClient
	source domain.Source
	prefix string
	ttl    time.Duration
}

// NewQuoteCache 创建报价缓存
func NewQuoteCache(client redis.UniversalClient, source domain.Source, ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QuoteCache{
		client: client,
		source: source,
		prefix: "pricing:quote:",
		ttl:    ttl,
	}
}

// Get 返回币种的 USD 价格
func (c *QuoteCache) Get(ctx context.Context, symbol string) (decimal.Decimal, error) {
	key := c.prefix + symbol
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var quote domain.Quote
		if err := json.Unmarshal(data, &quote); err == nil {
			return quote.Price, nil
		}
		// 缓存内容损坏时按未命中处理
	} else if !errors.Is(err, redis.Nil) {
		return decimal.Zero, fmt.Errorf("failed to get quote from redis: %w", err)
	}

	quote, err := c.source.Fetch(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.Put(ctx, quote); err != nil {
		return decimal.Zero, err
	}
	return quote.Price, nil
}

// Put 写入最新报价
func (c *QuoteCache) Put(ctx context.Context, quote *domain.Quote) error {
	if quote == nil {
		return nil
	}
	data, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	return c.client.Set(ctx, c.prefix+quote.Symbol, data, c.ttl).Err()
}
