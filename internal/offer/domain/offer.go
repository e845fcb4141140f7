// Package domain 报价单（挂单）的领域模型
package domain

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrOfferNotFound 报价单不存在
	ErrOfferNotFound = errors.New("offer not found")
	// ErrOfferNotActive 报价单不可接受（已完成/已取消/已过期，含未被后台清扫的过期单）
	ErrOfferNotActive = errors.New("offer is not active")
	// ErrNotOfferOwner 仅报价单所有者可操作
	ErrNotOfferOwner = errors.New("caller is not the offer owner")
	// ErrInvalidLimits 限额配置非法
	ErrInvalidLimits = errors.New("invalid offer limits")
	// ErrNoPaymentMethods 至少需要一种支付方式
	ErrNoPaymentMethods = errors.New("offer requires at least one payment method")
	// ErrUnsupportedCurrency 不支持的币种
	ErrUnsupportedCurrency = errors.New("unsupported cryptocurrency")
	// ErrInvalidStatusChange 非法的状态变更
	ErrInvalidStatusChange = errors.New("invalid offer status change")
)

// OfferType 报价单方向
type OfferType string

const (
	OfferTypeBuy  OfferType = "BUY"  // 所有者买入加密货币
	OfferTypeSell OfferType = "SELL" // 所有者卖出加密货币
)

// OfferStatus 报价单状态
type OfferStatus string

const (
	OfferStatusActive    OfferStatus = "ACTIVE"
	OfferStatusCompleted OfferStatus = "COMPLETED"
	OfferStatusCancelled OfferStatus = "CANCELLED"
	OfferStatusExpired   OfferStatus = "EXPIRED"
)

// DefaultTTL 报价单默认有效期
const DefaultTTL = 24 * time.Hour

// AmountEpsilon 剩余数量小于该值时视为耗尽
var AmountEpsilon = decimal.RequireFromString("0.00000001")

// Offer 报价单实体
// amount 在生命周期内只减不增，降为零（或低于 epsilon）后转为 COMPLETED
type Offer struct {
	gorm.Model
	// 报价单 ID (业务主键)
	OfferID string `gorm:"column:offer_id;type:varchar(32);uniqueIndex;not null" json:"offer_id"`
	// 所有者用户 ID
	OwnerID string `gorm:"column:owner_id;type:varchar(32);index;not null" json:"owner_id"`
	// 方向
	Type OfferType `gorm:"column:type;type:varchar(10);index;not null" json:"type"`
	// 加密货币（如 BTC）
	Cryptocurrency string `gorm:"column:cryptocurrency;type:varchar(10);index;not null" json:"cryptocurrency"`
	// 法币（如 USD）
	FiatCurrency string `gorm:"column:fiat_currency;type:varchar(10);not null" json:"fiat_currency"`
	// 剩余可交易数量（加密货币计）
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	// 单价（法币/单位加密货币）
	Price decimal.Decimal `gorm:"column:price;type:decimal(32,18);not null" json:"price"`
	// 单笔交易下限（法币计）
	MinLimit decimal.Decimal `gorm:"column:min_limit;type:decimal(32,18);not null" json:"min_limit"`
	// 单笔交易上限（法币计）
	MaxLimit decimal.Decimal `gorm:"column:max_limit;type:decimal(32,18);not null" json:"max_limit"`
	// 支持的支付方式，非空
	PaymentMethods []string `gorm:"column:payment_methods;type:varchar(512);serializer:json" json:"payment_methods"`
	// 状态
	Status OfferStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// 过期时间；过期判定在读取/接受时惰性执行，不依赖后台清扫
	ExpiresAt time.Time `gorm:"column:expires_at;index;not null" json:"expires_at"`
	// 完成时间
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
}

// NewOffer 创建报价单
func NewOffer(offerID, ownerID string, typ OfferType, crypto, fiat string,
	amount, price, minLimit, maxLimit decimal.Decimal, paymentMethods []string, ttl time.Duration,
) *Offer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Offer{
		OfferID:        offerID,
		OwnerID:        ownerID,
		Type:           typ,
		Cryptocurrency: crypto,
		FiatCurrency:   fiat,
		Amount:         amount,
		Price:          price,
		MinLimit:       minLimit,
		MaxLimit:       maxLimit,
		PaymentMethods: paymentMethods,
		Status:         OfferStatusActive,
		ExpiresAt:      time.Now().Add(ttl),
	}
}

// Validate 校验报价单配置
func (o *Offer) Validate() error {
	if o.Type != OfferTypeBuy && o.Type != OfferTypeSell {
		return ErrInvalidStatusChange
	}
	if len(o.PaymentMethods) == 0 {
		return ErrNoPaymentMethods
	}
	if o.Amount.LessThanOrEqual(decimal.Zero) || o.Price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidLimits
	}
	if o.MinLimit.LessThanOrEqual(decimal.Zero) || o.MaxLimit.LessThan(o.MinLimit) {
		return ErrInvalidLimits
	}
	// 限额以法币计，报价单全量的法币价值必须落在 [minLimit, maxLimit] 内：
	// 低于下限则不存在任何合法成交，高于上限则整单永远无法被单笔吃完
	totalFiat := o.Amount.Mul(o.Price)
	if totalFiat.LessThan(o.MinLimit) || totalFiat.GreaterThan(o.MaxLimit) {
		return ErrInvalidLimits
	}
	return nil
}

// IsExpired 是否已过期（以调用时刻判定）
func (o *Offer) IsExpired(now time.Time) bool {
	return !o.ExpiresAt.After(now)
}

// IsAcceptable 是否可被接受：状态 ACTIVE 且未过期
// 过期但状态尚未被清扫的报价单同样不可接受
func (o *Offer) IsAcceptable(now time.Time) bool {
	return o.Status == OfferStatusActive && !o.IsExpired(now)
}

// AcceptsPaymentMethod 是否支持该支付方式
func (o *Offer) AcceptsPaymentMethod(method string) bool {
	return slices.Contains(o.PaymentMethods, method)
}

// WithinLimits 法币金额是否落在 [minLimit, maxLimit]
func (o *Offer) WithinLimits(amountFiat decimal.Decimal) bool {
	return amountFiat.GreaterThanOrEqual(o.MinLimit) && amountFiat.LessThanOrEqual(o.MaxLimit)
}

// Consume 扣减剩余数量；耗尽后转 COMPLETED
// 持久化层必须以受保护的原子更新实现同等语义，此方法供领域内与测试使用
func (o *Offer) Consume(amount decimal.Decimal) error {
	if o.Status != OfferStatusActive {
		return ErrOfferNotActive
	}
	if amount.LessThanOrEqual(decimal.Zero) || o.Amount.LessThan(amount) {
		return ErrInvalidLimits
	}
	o.Amount = o.Amount.Sub(amount)
	if o.Amount.LessThanOrEqual(AmountEpsilon) {
		now := time.Now()
		o.Status = OfferStatusCompleted
		o.CompletedAt = &now
	}
	return nil
}

// OfferFilter 报价单列表过滤条件
type OfferFilter struct {
	Type           OfferType
	Cryptocurrency string
	FiatCurrency   string
	PaymentMethod  string
	MinAmountFiat  decimal.Decimal
	MaxAmountFiat  decimal.Decimal
	OwnerID        string
}

// OfferRepository 报价单仓储接口
type OfferRepository interface {
	Save(ctx context.Context, offer *Offer) error
	Get(ctx context.Context, offerID string) (*Offer, error)
	// GetForUpdate 事务内行级锁加载
	GetForUpdate(ctx context.Context, offerID string) (*Offer, error)
	// List 只返回 ACTIVE 且未过期的报价单，新单在前
	List(ctx context.Context, filter OfferFilter, limit, offset int) ([]*Offer, int64, error)
	// Consume 受保护的原子扣减：status=ACTIVE、未过期且余量充足时才生效，
	// 否则返回 ErrOfferNotActive；必须与交易创建同事务调用
	Consume(ctx context.Context, offerID string, amount decimal.Decimal) (*Offer, error)
	// UpdateStatus 条件状态变更
	UpdateStatus(ctx context.Context, offerID string, from, to OfferStatus) error
	// ExpireStale 后台清扫：把已过期但仍标记 ACTIVE 的报价单置为 EXPIRED，
	// 仅用于列表卫生，正确性不依赖于它
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}
