package application

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/p2pescrow/internal/offer/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"gorm.io/gorm"
)

// CreateOfferCommand 创建报价单命令
type CreateOfferCommand struct {
	OwnerID        string
	Type           string
	Cryptocurrency string
	FiatCurrency   string
	Amount         decimal.Decimal
	Price          decimal.Decimal
	MinLimit       decimal.Decimal
	MaxLimit       decimal.Decimal
	PaymentMethods []string
	TTL            time.Duration
}

// SetOfferStatusCommand 报价单状态变更命令（仅所有者）
type SetOfferStatusCommand struct {
	OfferID string
	OwnerID string
	Status  string
}

// OfferCommandService 处理报价单相关的命令操作
type OfferCommandService struct {
	repo      domain.OfferRepository
	outbox    *outbox.Manager
	db        *gorm.DB
	supported []string
}

// NewOfferCommandService 创建新的 OfferCommandService 实例
func NewOfferCommandService(repo domain.OfferRepository, outboxMgr *outbox.Manager, db *gorm.DB, supportedCurrencies []string) *OfferCommandService {
	return &OfferCommandService{
		repo:      repo,
		outbox:    outboxMgr,
		db:        db,
		supported: supportedCurrencies,
	}
}

// CreateOffer 创建报价单
func (s *OfferCommandService) CreateOffer(ctx context.Context, cmd CreateOfferCommand) (*OfferDTO, error) {
	if !slices.Contains(s.supported, cmd.Cryptocurrency) {
		return nil, domain.ErrUnsupportedCurrency
	}

	offer := domain.NewOffer(
		fmt.Sprintf("OFR-%d", idgen.GenID()),
		cmd.OwnerID,
		domain.OfferType(cmd.Type),
		cmd.Cryptocurrency,
		cmd.FiatCurrency,
		cmd.Amount,
		cmd.Price,
		cmd.MinLimit,
		cmd.MaxLimit,
		cmd.PaymentMethods,
		cmd.TTL,
	)
	if err := offer.Validate(); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		if err := s.repo.Save(txCtx, offer); err != nil {
			return err
		}
		return s.outbox.PublishInTx(ctx, tx, "offer.created", offer.OfferID, map[string]any{
			"offer_id": offer.OfferID, "owner_id": offer.OwnerID,
			"type": string(offer.Type), "cryptocurrency": offer.Cryptocurrency,
			"amount": offer.Amount.String(), "price": offer.Price.String(),
		})
	})
	if err != nil {
		logging.Error(ctx, "failed to create offer", "owner_id", cmd.OwnerID, "error", err)
		return nil, err
	}
	return toOfferDTO(offer), nil
}

// SetStatus 所有者取消（或重新标记）报价单
func (s *OfferCommandService) SetStatus(ctx context.Context, cmd SetOfferStatusCommand) error {
	target := domain.OfferStatus(cmd.Status)
	if target != domain.OfferStatusCancelled {
		return domain.ErrInvalidStatusChange
	}

	offer, err := s.repo.Get(ctx, cmd.OfferID)
	if err != nil {
		return err
	}
	if offer == nil {
		return domain.ErrOfferNotFound
	}
	if offer.OwnerID != cmd.OwnerID {
		return domain.ErrNotOfferOwner
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		if err := s.repo.UpdateStatus(txCtx, cmd.OfferID, domain.OfferStatusActive, target); err != nil {
			return err
		}
		return s.outbox.PublishInTx(ctx, tx, "offer.cancelled", cmd.OfferID, map[string]any{
			"offer_id": cmd.OfferID, "owner_id": cmd.OwnerID,
		})
	})
}

func toOfferDTO(o *domain.Offer) *OfferDTO {
	dto := &OfferDTO{
		OfferID:        o.OfferID,
		OwnerID:        o.OwnerID,
		Type:           string(o.Type),
		Cryptocurrency: o.Cryptocurrency,
		FiatCurrency:   o.FiatCurrency,
		Amount:         o.Amount.String(),
		Price:          o.Price.String(),
		MinLimit:       o.MinLimit.String(),
		MaxLimit:       o.MaxLimit.String(),
		PaymentMethods: o.PaymentMethods,
		Status:         string(o.Status),
		ExpiresAt:      o.ExpiresAt.Unix(),
		CreatedAt:      o.CreatedAt.Unix(),
	}
	if o.CompletedAt != nil {
		dto.CompletedAt = o.CompletedAt.Unix()
	}
	return dto
}
