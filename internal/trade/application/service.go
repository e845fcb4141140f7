package application

import (
	"context"

	"github.com/wyfcoding/p2pescrow/internal/trade/domain"
)

// TradeService 作为交易服务操作的门面。
type TradeService struct {
	Command *TradeCommandService
	Query   *TradeQueryService
}

// NewTradeService 创建并返回一个新的 TradeService 门面实例。
func NewTradeService(command *TradeCommandService, query *TradeQueryService) *TradeService {
	return &TradeService{
		Command: command,
		Query:   query,
	}
}

func (s *TradeService) AcceptOffer(ctx context.Context, cmd AcceptOfferCommand) (*TradeDTO, error) {
	return s.Command.AcceptOffer(ctx, cmd)
}

func (s *TradeService) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*TradeDTO, error) {
	return s.Command.UpdateStatus(ctx, cmd)
}

func (s *TradeService) GetTrade(ctx context.Context, tradeID, actorID string, isAdmin bool) (*TradeDTO, error) {
	return s.Query.GetTrade(ctx, tradeID, actorID, isAdmin)
}

func (s *TradeService) ListTrades(ctx context.Context, userID string, filter domain.TradeFilter, limit, offset int) ([]*TradeDTO, int64, error) {
	return s.Query.ListTrades(ctx, userID, filter, limit, offset)
}
