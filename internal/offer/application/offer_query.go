package application

import (
	"context"

	"github.com/wyfcoding/p2pescrow/internal/offer/domain"
)

// OfferQueryService 处理报价单相关的查询操作
type OfferQueryService struct {
	repo domain.OfferRepository
}

// NewOfferQueryService 创建新的 OfferQueryService 实例
func NewOfferQueryService(repo domain.OfferRepository) *OfferQueryService {
	return &OfferQueryService{repo: repo}
}

// GetOffer 获取报价单详情
func (s *OfferQueryService) GetOffer(ctx context.Context, offerID string) (*OfferDTO, error) {
	offer, err := s.repo.Get(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, domain.ErrOfferNotFound
	}
	return toOfferDTO(offer), nil
}

// ListOffers 获取可接受的报价单列表（ACTIVE 且未过期），新单在前
func (s *OfferQueryService) ListOffers(ctx context.Context, filter domain.OfferFilter, limit, offset int) ([]*OfferDTO, int64, error) {
	offers, total, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]*OfferDTO, len(offers))
	for i, o := range offers {
		dtos[i] = toOfferDTO(o)
	}
	return dtos, total, nil
}
