package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EntryType 账本流水类型
type EntryType string

const (
	EntryTypeDeposit       EntryType = "DEPOSIT"        // 充值
	EntryTypeWithdraw      EntryType = "WITHDRAW"       // 提现
	EntryTypeEscrowLock    EntryType = "ESCROW_LOCK"    // 托管锁定
	EntryTypeEscrowUnlock  EntryType = "ESCROW_UNLOCK"  // 托管取消退回
	EntryTypeEscrowRelease EntryType = "ESCROW_RELEASE" // 托管释放（出账侧）
	EntryTypeEscrowReceive EntryType = "ESCROW_RECEIVE" // 托管释放（入账侧）
	EntryTypeSwapOut       EntryType = "SWAP_OUT"       // 兑换卖出
	EntryTypeSwapIn        EntryType = "SWAP_IN"        // 兑换买入
)

// LedgerEntry 账本流水
// 每一次余额变动写入一条流水，与钱包变更同事务持久化
type LedgerEntry struct {
	gorm.Model
	// 流水 ID (业务主键)
	EntryID string `gorm:"column:entry_id;type:varchar(32);uniqueIndex;not null" json:"entry_id"`
	// 钱包 ID
	WalletID string `gorm:"column:wallet_id;type:varchar(32);index;not null" json:"wallet_id"`
	// 流水类型
	Type EntryType `gorm:"column:type;type:varchar(20);not null" json:"type"`
	// 金额（恒为正，方向由类型决定）
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	// 关联业务单号（交易 ID、兑换 ID 等）
	RefID string `gorm:"column:ref_id;type:varchar(32);index" json:"ref_id"`
	// 备注
	Remark string `gorm:"column:remark;type:varchar(255)" json:"remark"`
}

// LedgerEntryRepository 账本流水仓储接口
type LedgerEntryRepository interface {
	Save(ctx context.Context, entry *LedgerEntry) error
	// GetHistory 获取钱包流水分页列表
	GetHistory(ctx context.Context, walletID string, limit, offset int) ([]*LedgerEntry, int64, error)
}
