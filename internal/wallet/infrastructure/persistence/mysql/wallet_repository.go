package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/p2pescrow/internal/wallet/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/idgen"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// walletRepository 钱包仓储实现
type walletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建并返回一个新的 walletRepository 实例。
func NewWalletRepository(db *gorm.DB) domain.WalletRepository {
	return &walletRepository{db: db}
}

// Save 保存钱包（带乐观锁）
func (r *walletRepository) Save(ctx context.Context, wallet *domain.Wallet) error {
	db := r.getDB(ctx)

	// 新建钱包
	if wallet.ID == 0 {
		return db.WithContext(ctx).Create(wallet).Error
	}

	currentVersion := wallet.Version
	result := db.WithContext(ctx).Model(&domain.Wallet{}).
		Where("wallet_id = ? AND version = ?", wallet.WalletID, currentVersion).
		Updates(map[string]any{
			"available":         wallet.Available,
			"locked":            wallet.Locked,
			"total_deposits":    wallet.TotalDeposits,
			"total_withdrawals": wallet.TotalWithdrawals,
			"is_active":         wallet.IsActive,
			"is_default":        wallet.IsDefault,
			"version":           currentVersion + 1,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrentModification
	}

	wallet.Version = currentVersion + 1
	return nil
}

func (r *walletRepository) Get(ctx context.Context, walletID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := r.getDB(ctx).WithContext(ctx).Where("wallet_id = ?", walletID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// GetForUpdate 事务内行级锁加载，交易引擎的资金操作依赖此方法串行化同一钱包上的并发
func (r *walletRepository) GetForUpdate(ctx context.Context, walletID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_id = ?", walletID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 幂等获取钱包；并发撞唯一索引时回读已有记录
func (r *walletRepository) GetOrCreate(ctx context.Context, userID, currency, network string) (*domain.Wallet, error) {
	db := r.getDB(ctx)

	var existing domain.Wallet
	err := db.WithContext(ctx).
		Where("user_id = ? AND currency = ? AND network = ?", userID, currency, network).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	wallet := domain.NewWallet(fmt.Sprintf("WAL-%d", idgen.GenID()), userID, currency, network)

	// 该币种下首个钱包自动设为默认
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Wallet{}).
		Where("user_id = ? AND currency = ?", userID, currency).
		Count(&count).Error; err != nil {
		return nil, err
	}
	wallet.IsDefault = count == 0

	if err := db.WithContext(ctx).Create(wallet).Error; err != nil {
		// 唯一索引冲突说明另一请求已创建
		var raced domain.Wallet
		if e := db.WithContext(ctx).
			Where("user_id = ? AND currency = ? AND network = ?", userID, currency, network).
			First(&raced).Error; e == nil {
			return &raced, nil
		}
		return nil, err
	}
	return wallet, nil
}

func (r *walletRepository) GetByUser(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	var wallets []*domain.Wallet
	if err := r.getDB(ctx).WithContext(ctx).Where("user_id = ?", userID).Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

// SetDefault 设为默认钱包，同一（用户, 币种）组内其余默认标记被清除
func (r *walletRepository) SetDefault(ctx context.Context, userID, walletID string) error {
	return r.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet domain.Wallet
		if err := tx.Where("wallet_id = ? AND user_id = ?", walletID, userID).First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrWalletNotFound
			}
			return err
		}

		if err := tx.Model(&domain.Wallet{}).
			Where("user_id = ? AND currency = ? AND is_default = ?", userID, wallet.Currency, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Wallet{}).
			Where("wallet_id = ?", walletID).
			Update("is_default", true).Error
	})
}

func (r *walletRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}

// --- 账本流水仓储实现 ---

type ledgerEntryRepository struct {
	db *gorm.DB
}

// NewLedgerEntryRepository 创建账本流水仓储
func NewLedgerEntryRepository(db *gorm.DB) domain.LedgerEntryRepository {
	return &ledgerEntryRepository{db: db}
}

func (r *ledgerEntryRepository) Save(ctx context.Context, entry *domain.LedgerEntry) error {
	return r.getDB(ctx).WithContext(ctx).Create(entry).Error
}

func (r *ledgerEntryRepository) GetHistory(ctx context.Context, walletID string, limit, offset int) ([]*domain.LedgerEntry, int64, error) {
	db := r.getDB(ctx).WithContext(ctx).Model(&domain.LedgerEntry{}).Where("wallet_id = ?", walletID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []*domain.LedgerEntry
	if err := db.Order("id DESC").Limit(limit).Offset(offset).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *ledgerEntryRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
