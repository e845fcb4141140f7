package application

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	pricing "github.com/wyfcoding/p2pescrow/internal/pricing/domain"
	"github.com/wyfcoding/p2pescrow/internal/wallet/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"gorm.io/gorm"
)

var (
	// ErrUnsupportedCurrency 不支持的币种
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrSameCurrencySwap 兑换的两个币种不能相同
	ErrSameCurrencySwap = errors.New("cannot swap a currency for itself")
	// ErrPriceUnavailable 价格源暂不可用
	ErrPriceUnavailable = errors.New("price unavailable")
)

// CreateWalletCommand 创建钱包命令
type CreateWalletCommand struct {
	UserID   string
	Currency string
	Network  string
}

// DepositCommand 充值命令（链上确认为模拟流程）
type DepositCommand struct {
	UserID   string
	Currency string
	Network  string
	Amount   decimal.Decimal
	TxHash   string
}

// WithdrawCommand 提现命令
type WithdrawCommand struct {
	UserID   string
	WalletID string
	Amount   decimal.Decimal
	Address  string
}

// SwapCommand 币币兑换命令，按价格预言机汇率成交
type SwapCommand struct {
	UserID       string
	FromCurrency string
	ToCurrency   string
	Network      string
	Amount       decimal.Decimal
}

// WalletCommandService 处理钱包相关的命令操作
type WalletCommandService struct {
	repo      domain.WalletRepository
	ledger    domain.LedgerEntryRepository
	oracle    pricing.Oracle
	outbox    *outbox.Manager
	db        *gorm.DB
	supported []string
}

// NewWalletCommandService 创建新的 WalletCommandService 实例
func NewWalletCommandService(
	repo domain.WalletRepository,
	ledger domain.LedgerEntryRepository,
	oracle pricing.Oracle,
	outboxMgr *outbox.Manager,
	db *gorm.DB,
	supportedCurrencies []string,
) *WalletCommandService {
	return &WalletCommandService{
		repo:      repo,
		ledger:    ledger,
		oracle:    oracle,
		outbox:    outboxMgr,
		db:        db,
		supported: supportedCurrencies,
	}
}

// CreateWallet 创建（或幂等返回）钱包
func (s *WalletCommandService) CreateWallet(ctx context.Context, cmd CreateWalletCommand) (*WalletDTO, error) {
	if !slices.Contains(s.supported, cmd.Currency) {
		return nil, ErrUnsupportedCurrency
	}

	var wallet *domain.Wallet
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		w, err := s.repo.GetOrCreate(txCtx, cmd.UserID, cmd.Currency, cmd.Network)
		if err != nil {
			return err
		}
		wallet = w
		return nil
	})
	if err != nil {
		logging.Error(ctx, "failed to create wallet", "user_id", cmd.UserID, "currency", cmd.Currency, "error", err)
		return nil, err
	}
	return toWalletDTO(wallet), nil
}

// Deposit 充值：入账、写流水、发集成事件，全部同事务
func (s *WalletCommandService) Deposit(ctx context.Context, cmd DepositCommand) (*WalletDTO, error) {
	if !slices.Contains(s.supported, cmd.Currency) {
		return nil, ErrUnsupportedCurrency
	}

	var wallet *domain.Wallet
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)

		w, err := s.repo.GetOrCreate(txCtx, cmd.UserID, cmd.Currency, cmd.Network)
		if err != nil {
			return err
		}
		if err := w.Deposit(cmd.Amount); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, w); err != nil {
			return err
		}

		entry := &domain.LedgerEntry{
			EntryID:  fmt.Sprintf("LDG-%d", idgen.GenID()),
			WalletID: w.WalletID,
			Type:     domain.EntryTypeDeposit,
			Amount:   cmd.Amount,
			RefID:    cmd.TxHash,
		}
		if err := s.ledger.Save(txCtx, entry); err != nil {
			return err
		}

		wallet = w
		return s.outbox.PublishInTx(ctx, tx, "wallet.deposited", w.WalletID, map[string]any{
			"wallet_id": w.WalletID, "user_id": w.UserID,
			"currency": w.Currency, "amount": cmd.Amount.String(),
		})
	})
	if err != nil {
		logging.Error(ctx, "failed to deposit", "user_id", cmd.UserID, "currency", cmd.Currency, "error", err)
		return nil, err
	}
	return toWalletDTO(wallet), nil
}

// Withdraw 提现，仅限钱包所有者
func (s *WalletCommandService) Withdraw(ctx context.Context, cmd WithdrawCommand) (*WalletDTO, error) {
	var wallet *domain.Wallet
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)

		w, err := s.repo.GetForUpdate(txCtx, cmd.WalletID)
		if err != nil {
			return err
		}
		if w == nil || w.UserID != cmd.UserID {
			return domain.ErrWalletNotFound
		}
		if err := w.Withdraw(cmd.Amount); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, w); err != nil {
			return err
		}

		entry := &domain.LedgerEntry{
			EntryID:  fmt.Sprintf("LDG-%d", idgen.GenID()),
			WalletID: w.WalletID,
			Type:     domain.EntryTypeWithdraw,
			Amount:   cmd.Amount,
			Remark:   cmd.Address,
		}
		if err := s.ledger.Save(txCtx, entry); err != nil {
			return err
		}

		wallet = w
		return s.outbox.PublishInTx(ctx, tx, "wallet.withdrawn", w.WalletID, map[string]any{
			"wallet_id": w.WalletID, "user_id": w.UserID,
			"currency": w.Currency, "amount": cmd.Amount.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return toWalletDTO(wallet), nil
}

// SetDefault 设置默认钱包
func (s *WalletCommandService) SetDefault(ctx context.Context, userID, walletID string) error {
	return s.repo.SetDefault(ctx, userID, walletID)
}

// Disable 软停用钱包，余额非零时拒绝
func (s *WalletCommandService) Disable(ctx context.Context, userID, walletID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)

		w, err := s.repo.GetForUpdate(txCtx, walletID)
		if err != nil {
			return err
		}
		if w == nil || w.UserID != userID {
			return domain.ErrWalletNotFound
		}
		if err := w.Disable(); err != nil {
			return err
		}
		return s.repo.Save(txCtx, w)
	})
}

// Swap 币币兑换：按预言机价格把一个币种的可用余额换成另一个币种
// 预言机只服务于兑换，交易引擎使用报价单内嵌价格
func (s *WalletCommandService) Swap(ctx context.Context, cmd SwapCommand) (*SwapResultDTO, error) {
	if cmd.FromCurrency == cmd.ToCurrency {
		return nil, ErrSameCurrencySwap
	}
	if !slices.Contains(s.supported, cmd.FromCurrency) || !slices.Contains(s.supported, cmd.ToCurrency) {
		return nil, ErrUnsupportedCurrency
	}
	if cmd.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	// 价格查询在账本写入之前完成，价格源故障不触碰资金
	fromPrice, err := s.oracle.Get(ctx, cmd.FromCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, cmd.FromCurrency)
	}
	toPrice, err := s.oracle.Get(ctx, cmd.ToCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, cmd.ToCurrency)
	}
	rate := fromPrice.Div(toPrice)
	toAmount := cmd.Amount.Mul(rate)
	swapID := fmt.Sprintf("SWP-%d", idgen.GenID())

	err = s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)

		from, err := s.repo.GetOrCreate(txCtx, cmd.UserID, cmd.FromCurrency, cmd.Network)
		if err != nil {
			return err
		}
		to, err := s.repo.GetOrCreate(txCtx, cmd.UserID, cmd.ToCurrency, cmd.Network)
		if err != nil {
			return err
		}

		if err := from.Debit(cmd.Amount); err != nil {
			return err
		}
		if err := to.Credit(toAmount); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, from); err != nil {
			return err
		}
		if err := s.repo.Save(txCtx, to); err != nil {
			return err
		}

		out := &domain.LedgerEntry{
			EntryID:  fmt.Sprintf("LDG-%d", idgen.GenID()),
			WalletID: from.WalletID,
			Type:     domain.EntryTypeSwapOut,
			Amount:   cmd.Amount,
			RefID:    swapID,
		}
		in := &domain.LedgerEntry{
			EntryID:  fmt.Sprintf("LDG-%d", idgen.GenID()),
			WalletID: to.WalletID,
			Type:     domain.EntryTypeSwapIn,
			Amount:   toAmount,
			RefID:    swapID,
		}
		if err := s.ledger.Save(txCtx, out); err != nil {
			return err
		}
		if err := s.ledger.Save(txCtx, in); err != nil {
			return err
		}

		return s.outbox.PublishInTx(ctx, tx, "wallet.swapped", swapID, map[string]any{
			"swap_id": swapID, "user_id": cmd.UserID,
			"from_currency": cmd.FromCurrency, "to_currency": cmd.ToCurrency,
			"from_amount": cmd.Amount.String(), "to_amount": toAmount.String(),
		})
	})
	if err != nil {
		logging.Error(ctx, "failed to swap", "user_id", cmd.UserID, "swap_id", swapID, "error", err)
		return nil, err
	}

	return &SwapResultDTO{
		SwapID:       swapID,
		FromCurrency: cmd.FromCurrency,
		ToCurrency:   cmd.ToCurrency,
		FromAmount:   cmd.Amount.String(),
		ToAmount:     toAmount.String(),
		Rate:         rate.String(),
	}, nil
}

func toWalletDTO(w *domain.Wallet) *WalletDTO {
	return &WalletDTO{
		WalletID:         w.WalletID,
		UserID:           w.UserID,
		Currency:         w.Currency,
		Network:          w.Network,
		Available:        w.Available.String(),
		Locked:           w.Locked.String(),
		TotalDeposits:    w.TotalDeposits.String(),
		TotalWithdrawals: w.TotalWithdrawals.String(),
		IsActive:         w.IsActive,
		IsDefault:        w.IsDefault,
		CreatedAt:        w.CreatedAt.Unix(),
		UpdatedAt:        w.UpdatedAt.Unix(),
	}
}
