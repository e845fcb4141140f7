// Package domain 钱包账本的领域模型
package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrWalletNotFound 钱包不存在
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletDisabled 钱包已停用
	ErrWalletDisabled = errors.New("wallet is disabled")
	// ErrInsufficientFunds 可用余额不足
	ErrInsufficientFunds = errors.New("insufficient available balance")
	// ErrInvariantViolation 账本不变量被破坏（锁定余额即将变负），属于内部错误，必须告警
	ErrInvariantViolation = errors.New("ledger invariant violation")
	// ErrBalanceRemaining 余额非零的钱包不允许停用
	ErrBalanceRemaining = errors.New("wallet still holds balance")
	// ErrInvalidAmount 金额必须为正数
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrConcurrentModification 乐观锁冲突，调用方可重试
	ErrConcurrentModification = errors.New("wallet modified by another transaction")
)

// Wallet 钱包实体
// 每个用户在每个（币种, 网络）组合下唯一；资金唯一事实来源
type Wallet struct {
	gorm.Model
	// 钱包 ID (业务主键)，全局唯一
	WalletID string `gorm:"column:wallet_id;type:varchar(32);uniqueIndex;not null" json:"wallet_id"`
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex:idx_user_asset,priority:1;not null" json:"user_id"`
	// 币种（如 BTC, ETH, USDT）
	Currency string `gorm:"column:currency;type:varchar(10);uniqueIndex:idx_user_asset,priority:2;not null" json:"currency"`
	// 网络（如 mainnet, tron, bsc）
	Network string `gorm:"column:network;type:varchar(20);uniqueIndex:idx_user_asset,priority:3;not null" json:"network"`
	// 可用余额，任何时刻 >= 0
	Available decimal.Decimal `gorm:"column:available;type:decimal(32,18);default:0;not null" json:"available"`
	// 锁定余额（在途交易托管），任何时刻 >= 0
	Locked decimal.Decimal `gorm:"column:locked;type:decimal(32,18);default:0;not null" json:"locked"`
	// 累计充值
	TotalDeposits decimal.Decimal `gorm:"column:total_deposits;type:decimal(32,18);default:0;not null" json:"total_deposits"`
	// 累计提现
	TotalWithdrawals decimal.Decimal `gorm:"column:total_withdrawals;type:decimal(32,18);default:0;not null" json:"total_withdrawals"`
	// 是否启用（软停用，余额非零时不可停用）
	IsActive bool `gorm:"column:is_active;default:true;not null" json:"is_active"`
	// 是否为该（币种, 网络）下的默认钱包
	IsDefault bool `gorm:"column:is_default;default:false;not null" json:"is_default"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;default:0;not null" json:"version"`
}

// NewWallet 创建钱包
func NewWallet(walletID, userID, currency, network string) *Wallet {
	return &Wallet{
		WalletID:         walletID,
		UserID:           userID,
		Currency:         currency,
		Network:          network,
		Available:        decimal.Zero,
		Locked:           decimal.Zero,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		IsActive:         true,
	}
}

// Balance 总余额 = 可用 + 锁定
func (w *Wallet) Balance() decimal.Decimal {
	return w.Available.Add(w.Locked)
}

// Lock 锁定资金进入托管：available -= amount, locked += amount
func (w *Wallet) Lock(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if !w.IsActive {
		return ErrWalletDisabled
	}
	if w.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	w.Available = w.Available.Sub(amount)
	w.Locked = w.Locked.Add(amount)
	return nil
}

// Unlock 托管取消，资金退回同一钱包：locked -= amount, available += amount
func (w *Wallet) Unlock(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if w.Locked.LessThan(amount) {
		return ErrInvariantViolation
	}
	w.Locked = w.Locked.Sub(amount)
	w.Available = w.Available.Add(amount)
	return nil
}

// ReleaseLocked 托管完成，从锁定余额中扣除（对端钱包由 ReceiveRelease 入账）
func (w *Wallet) ReleaseLocked(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if w.Locked.LessThan(amount) {
		return ErrInvariantViolation
	}
	w.Locked = w.Locked.Sub(amount)
	return nil
}

// ReceiveRelease 托管完成，接收方可用余额入账
func (w *Wallet) ReceiveRelease(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	w.Available = w.Available.Add(amount)
	return nil
}

// Credit 普通入账（非托管），用于充值、兑换
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if !w.IsActive {
		return ErrWalletDisabled
	}
	w.Available = w.Available.Add(amount)
	return nil
}

// Debit 普通扣款（非托管），用于提现、兑换
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if !w.IsActive {
		return ErrWalletDisabled
	}
	if w.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	w.Available = w.Available.Sub(amount)
	return nil
}

// Deposit 充值：入账并累计充值总额
func (w *Wallet) Deposit(amount decimal.Decimal) error {
	if err := w.Credit(amount); err != nil {
		return err
	}
	w.TotalDeposits = w.TotalDeposits.Add(amount)
	return nil
}

// Withdraw 提现：扣款并累计提现总额
func (w *Wallet) Withdraw(amount decimal.Decimal) error {
	if err := w.Debit(amount); err != nil {
		return err
	}
	w.TotalWithdrawals = w.TotalWithdrawals.Add(amount)
	return nil
}

// Disable 软停用钱包，余额非零时拒绝
func (w *Wallet) Disable() error {
	if w.Balance().IsPositive() {
		return ErrBalanceRemaining
	}
	w.IsActive = false
	w.IsDefault = false
	return nil
}

// WalletRepository 钱包仓储接口
// Save 必须以版本号 CAS 实现并发控制；GetForUpdate 供事务内行级锁使用
type WalletRepository interface {
	Save(ctx context.Context, wallet *Wallet) error
	Get(ctx context.Context, walletID string) (*Wallet, error)
	// GetForUpdate 在当前事务中以 SELECT ... FOR UPDATE 加载钱包
	GetForUpdate(ctx context.Context, walletID string) (*Wallet, error)
	// GetOrCreate 幂等获取钱包，同一（用户, 币种, 网络）永不重复创建
	GetOrCreate(ctx context.Context, userID, currency, network string) (*Wallet, error)
	GetByUser(ctx context.Context, userID string) ([]*Wallet, error)
	// SetDefault 将钱包设为该（币种, 网络）下的默认钱包，并清除同组其他默认标记
	SetDefault(ctx context.Context, userID, walletID string) error
}
