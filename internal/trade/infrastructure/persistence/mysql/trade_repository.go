package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/p2pescrow/internal/trade/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tradeRepository 交易仓储实现
type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository 创建并返回一个新的 tradeRepository 实例。
func NewTradeRepository(db *gorm.DB) domain.TradeRepository {
	return &tradeRepository{db: db}
}

// Save 保存交易（带乐观锁）
func (r *tradeRepository) Save(ctx context.Context, trade *domain.Trade) error {
	db := r.getDB(ctx)

	if trade.ID == 0 {
		return db.WithContext(ctx).Create(trade).Error
	}

	currentVersion := trade.Version
	result := db.WithContext(ctx).Model(&domain.Trade{}).
		Where("trade_id = ? AND version = ?", trade.TradeID, currentVersion).
		Updates(map[string]any{
			"status":         trade.Status,
			"escrow_held":    trade.EscrowHeld,
			"payment_proof":  trade.PaymentProof,
			"payout_method":  trade.PayoutMethod,
			"payout_details": trade.PayoutDetails,
			"notes":          trade.Notes,
			"completed_at":   trade.CompletedAt,
			"cancelled_at":   trade.CancelledAt,
			"updated_at":     time.Now(),
			"version":        currentVersion + 1,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrentModification
	}

	trade.Version = currentVersion + 1
	return nil
}

func (r *tradeRepository) Get(ctx context.Context, tradeID string) (*domain.Trade, error) {
	var trade domain.Trade
	if err := r.getDB(ctx).WithContext(ctx).Where("trade_id = ?", tradeID).First(&trade).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// GetForUpdate 事务内行级锁加载，状态迁移依赖此方法串行化同一交易上的并发
func (r *tradeRepository) GetForUpdate(ctx context.Context, tradeID string) (*domain.Trade, error) {
	var trade domain.Trade
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trade_id = ?", tradeID).
		First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// ListByParticipant 参与方视角的交易列表（买方或卖方），新单在前
func (r *tradeRepository) ListByParticipant(ctx context.Context, userID string, filter domain.TradeFilter, limit, offset int) ([]*domain.Trade, int64, error) {
	db := r.getDB(ctx).WithContext(ctx).Model(&domain.Trade{}).
		Where("buyer_id = ? OR seller_id = ?", userID, userID)

	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Cryptocurrency != "" {
		db = db.Where("cryptocurrency = ?", filter.Cryptocurrency)
	}
	if filter.OfferID != "" {
		db = db.Where("offer_id = ?", filter.OfferID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var trades []*domain.Trade
	if err := db.Order("id DESC").Limit(limit).Offset(offset).Find(&trades).Error; err != nil {
		return nil, 0, err
	}
	return trades, total, nil
}

func (r *tradeRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
