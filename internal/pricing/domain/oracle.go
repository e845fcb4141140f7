// Package domain 价格预言机的领域模型
// 只服务于币币兑换的汇率换算，交易引擎使用报价单内嵌价格
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSymbolNotFound 未知币种，没有可用报价
var ErrSymbolNotFound = errors.New("no quote for symbol")

// Quote 单币种报价（以 USD 计价）
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Source    string          `json:"source"`
	Timestamp int64           `json:"timestamp"`
}

// Oracle 价格预言机接口
type Oracle interface {
	// Get 返回币种的 USD 价格；无报价时返回 ErrSymbolNotFound
	Get(ctx context.Context, symbol string) (decimal.Decimal, error)
	// Put 写入最新报价，供行情消费端推送
	Put(ctx context.Context, quote *Quote) error
}

// Source 报价来源接口，缓存未命中时回源
type Source interface {
	Fetch(ctx context.Context, symbol string) (*Quote, error)
}

// NewQuote 创建报价
func NewQuote(symbol string, price decimal.Decimal, source string) *Quote {
	return &Quote{
		Symbol:    symbol,
		Price:     price,
		Source:    source,
		Timestamp: time.Now().Unix(),
	}
}
