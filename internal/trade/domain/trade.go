// Package domain 交易（含托管生命周期）的领域模型
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrTradeNotFound 交易不存在
	ErrTradeNotFound = errors.New("trade not found")
	// ErrNotTradeParty 仅交易双方（或仲裁管理员）可操作
	ErrNotTradeParty = errors.New("caller is not a party to this trade")
	// ErrInvalidTransition 非法的状态迁移
	ErrInvalidTransition = errors.New("invalid trade status transition")
	// ErrSelfTrade 不允许接受自己的报价单
	ErrSelfTrade = errors.New("cannot accept own offer")
	// ErrAmountOutOfLimits 法币金额超出报价单限额
	ErrAmountOutOfLimits = errors.New("fiat amount outside offer limits")
	// ErrPaymentMethodNotAccepted 报价单不支持该支付方式
	ErrPaymentMethodNotAccepted = errors.New("payment method not accepted by offer")
	// ErrConcurrentModification 乐观锁冲突，调用方可重试
	ErrConcurrentModification = errors.New("trade modified by another transaction")
)

// TradeStatus 交易状态
type TradeStatus string

const (
	TradeStatusPending         TradeStatus = "PENDING"          // 托管已锁定，等待买方付款
	TradeStatusPaymentSent     TradeStatus = "PAYMENT_SENT"     // 买方声称已付款
	TradeStatusPaymentReceived TradeStatus = "PAYMENT_RECEIVED" // 卖方确认收款
	TradeStatusCryptoReleased  TradeStatus = "CRYPTO_RELEASED"  // 信息性状态，资金变动发生在 COMPLETED
	TradeStatusCompleted       TradeStatus = "COMPLETED"        // 终态：托管释放给买方
	TradeStatusCancelled       TradeStatus = "CANCELLED"        // 终态：托管退回锁定方
	TradeStatusDisputed        TradeStatus = "DISPUTED"         // 冻结，仅仲裁管理员可迁出
)

// transitions 普通参与方允许的状态迁移表
var transitions = map[TradeStatus][]TradeStatus{
	TradeStatusPending:         {TradeStatusPaymentSent, TradeStatusCancelled, TradeStatusDisputed},
	TradeStatusPaymentSent:     {TradeStatusPaymentReceived, TradeStatusCancelled, TradeStatusDisputed},
	TradeStatusPaymentReceived: {TradeStatusCryptoReleased, TradeStatusCompleted, TradeStatusCancelled, TradeStatusDisputed},
	TradeStatusCryptoReleased:  {TradeStatusCompleted, TradeStatusCancelled, TradeStatusDisputed},
}

// adminTransitions 仲裁管理员在 DISPUTED 上的出口
var adminTransitions = map[TradeStatus][]TradeStatus{
	TradeStatusDisputed: {TradeStatusCompleted, TradeStatusCancelled},
}

// Trade 交易实体
// 由接受报价单产生；escrowHeld 为 true 期间，escrowAmount 必须体现在
// 托管钱包的 locked 余额中；翻转为 false 时释放与退回恰好执行其一
type Trade struct {
	gorm.Model
	// 交易 ID (业务主键)
	TradeID string `gorm:"column:trade_id;type:varchar(32);uniqueIndex;not null" json:"trade_id"`
	// 来源报价单 ID
	OfferID string `gorm:"column:offer_id;type:varchar(32);index;not null" json:"offer_id"`
	// 买方（收到加密货币的一方）
	BuyerID string `gorm:"column:buyer_id;type:varchar(32);index;not null" json:"buyer_id"`
	// 卖方（交出加密货币的一方）
	SellerID string `gorm:"column:seller_id;type:varchar(32);index;not null" json:"seller_id"`
	// 加密货币
	Cryptocurrency string `gorm:"column:cryptocurrency;type:varchar(10);not null" json:"cryptocurrency"`
	// 法币
	FiatCurrency string `gorm:"column:fiat_currency;type:varchar(10);not null" json:"fiat_currency"`
	// 成交数量（加密货币计）
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	// 成交单价（来自报价单，不取实时行情）
	Price decimal.Decimal `gorm:"column:price;type:decimal(32,18);not null" json:"price"`
	// 法币总额
	TotalFiat decimal.Decimal `gorm:"column:total_fiat;type:decimal(32,18);not null" json:"total_fiat"`
	// 支付方式
	PaymentMethod string `gorm:"column:payment_method;type:varchar(50);not null" json:"payment_method"`
	// 状态
	Status TradeStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	// 托管数量
	EscrowAmount decimal.Decimal `gorm:"column:escrow_amount;type:decimal(32,18);not null" json:"escrow_amount"`
	// 托管是否仍然持有
	EscrowHeld bool `gorm:"column:escrow_held;not null" json:"escrow_held"`
	// 托管资金所在钱包（锁定方）
	EscrowWalletID string `gorm:"column:escrow_wallet_id;type:varchar(32);not null" json:"escrow_wallet_id"`
	// 付款凭证
	PaymentProof string `gorm:"column:payment_proof;type:varchar(512)" json:"payment_proof"`
	// 收款方式与明细
	PayoutMethod  string `gorm:"column:payout_method;type:varchar(50)" json:"payout_method"`
	PayoutDetails string `gorm:"column:payout_details;type:varchar(512)" json:"payout_details"`
	// 备注
	Notes string `gorm:"column:notes;type:varchar(512)" json:"notes"`
	// 完成/取消时间
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;default:0;not null" json:"version"`
}

// IsTerminal 是否处于终态
func (t *Trade) IsTerminal() bool {
	return t.Status == TradeStatusCompleted || t.Status == TradeStatusCancelled
}

// IsParty 是否为交易一方
func (t *Trade) IsParty(userID string) bool {
	return userID == t.BuyerID || userID == t.SellerID
}

// CanTransition 校验状态迁移是否合法
// DISPUTED 状态冻结，仅仲裁管理员可迁出；终态重入由调用方做幂等处理
func (t *Trade) CanTransition(target TradeStatus, isAdmin bool) bool {
	table := transitions
	if t.Status == TradeStatusDisputed {
		if !isAdmin {
			return false
		}
		table = adminTransitions
	}
	for _, allowed := range table[t.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// MarkCompleted 进入完成终态；托管释放由交易引擎在同事务内执行
func (t *Trade) MarkCompleted(now time.Time) {
	t.Status = TradeStatusCompleted
	t.CompletedAt = &now
}

// MarkCancelled 进入取消终态
func (t *Trade) MarkCancelled(now time.Time) {
	t.Status = TradeStatusCancelled
	t.CancelledAt = &now
}

// amountPrecision 成交数量换算精度，与账本 decimal(32,18) 对齐
const amountPrecision = 18

// ConvertAmount 法币金额按报价单单价换算为加密货币数量
func ConvertAmount(amountFiat, price decimal.Decimal) decimal.Decimal {
	return amountFiat.DivRound(price, amountPrecision)
}

// TradeFilter 交易列表过滤条件
type TradeFilter struct {
	Status         TradeStatus
	Cryptocurrency string
	OfferID        string
}

// TradeRepository 交易仓储接口
type TradeRepository interface {
	// Save 保存交易；更新时以版本号 CAS 防止并发覆盖
	Save(ctx context.Context, trade *Trade) error
	Get(ctx context.Context, tradeID string) (*Trade, error)
	// GetForUpdate 事务内行级锁加载
	GetForUpdate(ctx context.Context, tradeID string) (*Trade, error)
	// ListByParticipant 参与方视角的交易列表（买方或卖方），新单在前
	ListByParticipant(ctx context.Context, userID string, filter TradeFilter, limit, offset int) ([]*Trade, int64, error)
}

// Notifier 生命周期事件通知接口，尽力而为，失败不影响交易正确性
type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, message string, metadata map[string]string)
	NotifyAdmins(ctx context.Context, kind, title, message string, metadata map[string]string)
}

// EventPublisher 领域事件发布接口
// 实现方必须把事件与业务变更写入同一事务（Outbox 模式）
type EventPublisher interface {
	PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error
}
