package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/p2pescrow/internal/offer/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// offerRepository 报价单仓储实现
type offerRepository struct {
	db *gorm.DB
}

// NewOfferRepository 创建并返回一个新的 offerRepository 实例。
func NewOfferRepository(db *gorm.DB) domain.OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) Save(ctx context.Context, offer *domain.Offer) error {
	return r.getDB(ctx).WithContext(ctx).Save(offer).Error
}

func (r *offerRepository) Get(ctx context.Context, offerID string) (*domain.Offer, error) {
	var offer domain.Offer
	if err := r.getDB(ctx).WithContext(ctx).Where("offer_id = ?", offerID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepository) GetForUpdate(ctx context.Context, offerID string) (*domain.Offer, error) {
	var offer domain.Offer
	err := r.getDB(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("offer_id = ?", offerID).
		First(&offer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// List 过期判定在查询条件中惰性执行，不依赖后台清扫
func (r *offerRepository) List(ctx context.Context, filter domain.OfferFilter, limit, offset int) ([]*domain.Offer, int64, error) {
	query := r.getDB(ctx).WithContext(ctx).Model(&domain.Offer{}).
		Where("status = ? AND expires_at > ?", domain.OfferStatusActive, time.Now())

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Cryptocurrency != "" {
		query = query.Where("cryptocurrency = ?", filter.Cryptocurrency)
	}
	if filter.FiatCurrency != "" {
		query = query.Where("fiat_currency = ?", filter.FiatCurrency)
	}
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.PaymentMethod != "" {
		// payment_methods 为 JSON 数组列，按序列化后的成员匹配
		query = query.Where("payment_methods LIKE ?", `%"`+filter.PaymentMethod+`"%`)
	}
	if filter.MinAmountFiat.IsPositive() {
		query = query.Where("max_limit >= ?", filter.MinAmountFiat)
	}
	if filter.MaxAmountFiat.IsPositive() {
		query = query.Where("min_limit <= ?", filter.MaxAmountFiat)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var offers []*domain.Offer
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&offers).Error; err != nil {
		return nil, 0, err
	}
	return offers, total, nil
}

// Consume 受保护的原子扣减，避免读改写竞态导致超卖
func (r *offerRepository) Consume(ctx context.Context, offerID string, amount decimal.Decimal) (*domain.Offer, error) {
	db := r.getDB(ctx)
	now := time.Now()

	result := db.WithContext(ctx).Model(&domain.Offer{}).
		Where("offer_id = ? AND status = ? AND expires_at > ? AND amount >= ?",
			offerID, domain.OfferStatusActive, now, amount).
		Update("amount", gorm.Expr("amount - ?", amount))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrOfferNotActive
	}

	// 耗尽后转 COMPLETED；条件更新保证只翻转一次
	if err := db.WithContext(ctx).Model(&domain.Offer{}).
		Where("offer_id = ? AND status = ? AND amount <= ?",
			offerID, domain.OfferStatusActive, domain.AmountEpsilon).
		Updates(map[string]any{
			"status":       domain.OfferStatusCompleted,
			"completed_at": now,
		}).Error; err != nil {
		return nil, err
	}

	var offer domain.Offer
	if err := db.WithContext(ctx).Where("offer_id = ?", offerID).First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *offerRepository) UpdateStatus(ctx context.Context, offerID string, from, to domain.OfferStatus) error {
	result := r.getDB(ctx).WithContext(ctx).Model(&domain.Offer{}).
		Where("offer_id = ? AND status = ?", offerID, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrInvalidStatusChange
	}
	return nil
}

func (r *offerRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.getDB(ctx).WithContext(ctx).Model(&domain.Offer{}).
		Where("status = ? AND expires_at <= ?", domain.OfferStatusActive, now).
		Update("status", domain.OfferStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *offerRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
