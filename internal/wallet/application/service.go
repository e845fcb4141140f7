package application

import "context"

// WalletService 作为钱包服务操作的门面。
type WalletService struct {
	Command *WalletCommandService
	Query   *WalletQueryService
}

// NewWalletService 创建并返回一个新的 WalletService 门面实例。
func NewWalletService(command *WalletCommandService, query *WalletQueryService) *WalletService {
	return &WalletService{
		Command: command,
		Query:   query,
	}
}

// --- 写操作（委托给 Command） ---

func (s *WalletService) CreateWallet(ctx context.Context, cmd CreateWalletCommand) (*WalletDTO, error) {
	return s.Command.CreateWallet(ctx, cmd)
}

func (s *WalletService) Deposit(ctx context.Context, cmd DepositCommand) (*WalletDTO, error) {
	return s.Command.Deposit(ctx, cmd)
}

func (s *WalletService) Withdraw(ctx context.Context, cmd WithdrawCommand) (*WalletDTO, error) {
	return s.Command.Withdraw(ctx, cmd)
}

func (s *WalletService) Swap(ctx context.Context, cmd SwapCommand) (*SwapResultDTO, error) {
	return s.Command.Swap(ctx, cmd)
}

func (s *WalletService) SetDefault(ctx context.Context, userID, walletID string) error {
	return s.Command.SetDefault(ctx, userID, walletID)
}

func (s *WalletService) Disable(ctx context.Context, userID, walletID string) error {
	return s.Command.Disable(ctx, userID, walletID)
}

// --- 读操作（委托给 Query） ---

func (s *WalletService) GetWallet(ctx context.Context, userID, walletID string) (*WalletDTO, error) {
	return s.Query.GetWallet(ctx, userID, walletID)
}

func (s *WalletService) ListWallets(ctx context.Context, userID string) ([]*WalletDTO, error) {
	return s.Query.ListWallets(ctx, userID)
}

func (s *WalletService) GetHistory(ctx context.Context, userID, walletID string, limit, offset int) ([]*LedgerEntryDTO, int64, error) {
	return s.Query.GetHistory(ctx, userID, walletID, limit, offset)
}
