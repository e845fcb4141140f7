package application

import (
	"context"

	"github.com/wyfcoding/p2pescrow/internal/wallet/domain"
)

// WalletQueryService 处理钱包相关的查询操作
type WalletQueryService struct {
	repo   domain.WalletRepository
	ledger domain.LedgerEntryRepository
}

// NewWalletQueryService 创建新的 WalletQueryService 实例
func NewWalletQueryService(repo domain.WalletRepository, ledger domain.LedgerEntryRepository) *WalletQueryService {
	return &WalletQueryService{repo: repo, ledger: ledger}
}

// GetWallet 获取钱包，仅限所有者
func (s *WalletQueryService) GetWallet(ctx context.Context, userID, walletID string) (*WalletDTO, error) {
	wallet, err := s.repo.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet == nil || wallet.UserID != userID {
		return nil, domain.ErrWalletNotFound
	}
	return toWalletDTO(wallet), nil
}

// ListWallets 获取用户钱包列表
func (s *WalletQueryService) ListWallets(ctx context.Context, userID string) ([]*WalletDTO, error) {
	wallets, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*WalletDTO, len(wallets))
	for i, w := range wallets {
		dtos[i] = toWalletDTO(w)
	}
	return dtos, nil
}

// GetHistory 获取钱包流水分页列表，仅限所有者
func (s *WalletQueryService) GetHistory(ctx context.Context, userID, walletID string, limit, offset int) ([]*LedgerEntryDTO, int64, error) {
	wallet, err := s.repo.Get(ctx, walletID)
	if err != nil {
		return nil, 0, err
	}
	if wallet == nil || wallet.UserID != userID {
		return nil, 0, domain.ErrWalletNotFound
	}

	entries, total, err := s.ledger.GetHistory(ctx, walletID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]*LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = &LedgerEntryDTO{
			EntryID:   e.EntryID,
			WalletID:  e.WalletID,
			Type:      string(e.Type),
			Amount:    e.Amount.String(),
			RefID:     e.RefID,
			Remark:    e.Remark,
			CreatedAt: e.CreatedAt.Unix(),
		}
	}
	return dtos, total, nil
}
