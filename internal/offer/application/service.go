package application

import (
	"context"

	"github.com/wyfcoding/p2pescrow/internal/offer/domain"
)

// OfferService 作为报价单服务操作的门面。
type OfferService struct {
	Command *OfferCommandService
	Query   *OfferQueryService
}

// NewOfferService 创建并返回一个新的 OfferService 门面实例。
func NewOfferService(command *OfferCommandService, query *OfferQueryService) *OfferService {
	return &OfferService{
		Command: command,
		Query:   query,
	}
}

func (s *OfferService) CreateOffer(ctx context.Context, cmd CreateOfferCommand) (*OfferDTO, error) {
	return s.Command.CreateOffer(ctx, cmd)
}

func (s *OfferService) SetStatus(ctx context.Context, cmd SetOfferStatusCommand) error {
	return s.Command.SetStatus(ctx, cmd)
}

func (s *OfferService) GetOffer(ctx context.Context, offerID string) (*OfferDTO, error) {
	return s.Query.GetOffer(ctx, offerID)
}

func (s *OfferService) ListOffers(ctx context.Context, filter domain.OfferFilter, limit, offset int) ([]*OfferDTO, int64, error) {
	return s.Query.ListOffers(ctx, filter, limit, offset)
}
