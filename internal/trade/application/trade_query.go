package application

import (
	"context"

	"github.com/wyfcoding/p2pescrow/internal/trade/domain"
)

// TradeQueryService 处理交易相关的查询操作
type TradeQueryService struct {
	repo domain.TradeRepository
}

// NewTradeQueryService 创建新的 TradeQueryService 实例
func NewTradeQueryService(repo domain.TradeRepository) *TradeQueryService {
	return &TradeQueryService{repo: repo}
}

// GetTrade 获取交易详情，仅交易双方与管理员可见
func (s *TradeQueryService) GetTrade(ctx context.Context, tradeID, actorID string, isAdmin bool) (*TradeDTO, error) {
	trade, err := s.repo.Get(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, domain.ErrTradeNotFound
	}
	if !trade.IsParty(actorID) && !isAdmin {
		return nil, domain.ErrNotTradeParty
	}
	return toTradeDTO(trade), nil
}

// ListTrades 参与方视角的交易列表（买方或卖方），新单在前
func (s *TradeQueryService) ListTrades(ctx context.Context, userID string, filter domain.TradeFilter, limit, offset int) ([]*TradeDTO, int64, error) {
	trades, total, err := s.repo.ListByParticipant(ctx, userID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]*TradeDTO, len(trades))
	for i, t := range trades {
		dtos[i] = toTradeDTO(t)
	}
	return dtos, total, nil
}
