package application

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	offerdomain "github.com/wyfcoding/p2pescrow/internal/offer/domain"
	"github.com/wyfcoding/p2pescrow/internal/trade/domain"
	walletdomain "github.com/wyfcoding/p2pescrow/internal/wallet/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"
)

// transactionManager 数据库事务入口，*gorm.DB 原生满足
type transactionManager interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// AcceptOfferCommand 接受报价单命令
type AcceptOfferCommand struct {
	OfferID       string
	AcceptorID    string
	AmountFiat    decimal.Decimal
	PaymentMethod string
}

// UpdateStatusCommand 交易状态迁移命令
// 元数据字段（付款凭证/收款方式/备注）随任意迁移可选携带
type UpdateStatusCommand struct {
	TradeID       string
	ActorID       string
	IsAdmin       bool
	Status        domain.TradeStatus
	PaymentProof  string
	PayoutMethod  string
	PayoutDetails string
	Notes         string
}

// TradeCommandService 处理交易相关的命令操作
// 资金操作（托管锁定/释放/退回）与状态迁移在同一数据库事务内完成
type TradeCommandService struct {
	trades    domain.TradeRepository
	offers    offerdomain.OfferRepository
	wallets   walletdomain.WalletRepository
	ledger    walletdomain.LedgerEntryRepository
	notifier  domain.Notifier
	publisher domain.EventPublisher
	db        transactionManager
	network   string
	// dispatch 通知派发入口；默认异步，不占用请求耗时
	dispatch func(fn func())
}

// NewTradeCommandService 创建新的 TradeCommandService 实例
// network 为托管钱包所在网络，与充值入口保持一致
func NewTradeCommandService(
	trades domain.TradeRepository,
	offers offerdomain.OfferRepository,
	wallets walletdomain.WalletRepository,
	ledger walletdomain.LedgerEntryRepository,
	notifier domain.Notifier,
	publisher domain.EventPublisher,
	db transactionManager,
	network string,
) *TradeCommandService {
	return &TradeCommandService{
		trades:    trades,
		offers:    offers,
		wallets:   wallets,
		ledger:    ledger,
		notifier:  notifier,
		publisher: publisher,
		db:        db,
		network:   network,
		dispatch:  func(fn func()) { go fn() },
	}
}

// AcceptOffer 接受报价单并创建交易
// 校验、报价单扣减、托管锁定、交易落库在同一事务内，任一步失败整体回滚；
// 行级锁（报价单与托管钱包）保证并发接受时既不超卖也不超锁
func (s *TradeCommandService) AcceptOffer(ctx context.Context, cmd AcceptOfferCommand) (*TradeDTO, error) {
	if cmd.AmountFiat.LessThanOrEqual(decimal.Zero) {
		return nil, walletdomain.ErrInvalidAmount
	}

	var trade *domain.Trade
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)

		offer, err := s.offers.GetForUpdate(txCtx, cmd.OfferID)
		if err != nil {
			return err
		}
		if offer == nil {
			return offerdomain.ErrOfferNotFound
		}
		// 惰性过期判定：过期但尚未被清扫的报价单同样拒绝
		if !offer.IsAcceptable(time.Now()) {
			return offerdomain.ErrOfferNotActive
		}
		if offer.OwnerID == cmd.AcceptorID {
			return domain.ErrSelfTrade
		}
		if !offer.WithinLimits(cmd.AmountFiat) {
			return domain.ErrAmountOutOfLimits
		}
		if !offer.AcceptsPaymentMethod(cmd.PaymentMethod) {
			return domain.ErrPaymentMethodNotAccepted
		}

		// 成交数量按报价单内嵌价格换算，不取实时行情
		tradeAmount := domain.ConvertAmount(cmd.AmountFiat, offer.Price)
		if tradeAmount.GreaterThan(offer.Amount) {
			return offerdomain.ErrOfferNotActive
		}

		// 托管锁定持有加密货币一方的钱包：
		// SELL 单锁所有者（卖方），BUY 单锁接受者（卖方）
		var buyerID, sellerID string
		if offer.Type == offerdomain.OfferTypeSell {
			sellerID, buyerID = offer.OwnerID, cmd.AcceptorID
		} else {
			sellerID, buyerID = cmd.AcceptorID, offer.OwnerID
		}

		escrowWallet, err := s.wallets.GetOrCreate(txCtx, sellerID, offer.Cryptocurrency, s.network)
		if err != nil {
			return err
		}
		escrowWallet, err = s.wallets.GetForUpdate(txCtx, escrowWallet.WalletID)
		if err != nil {
			return err
		}
		if escrowWallet == nil {
			return walletdomain.ErrWalletNotFound
		}
		if err := escrowWallet.Lock(tradeAmount); err != nil {
			return err
		}
		if err := s.wallets.Save(txCtx, escrowWallet); err != nil {
			return err
		}

		// 受保护的原子扣减，余量不足或状态已变时失败
		if _, err := s.offers.Consume(txCtx, offer.OfferID, tradeAmount); err != nil {
			return err
		}

		trade = &domain.Trade{
			TradeID:        fmt.Sprintf("TRD-%d", idgen.GenID()),
			OfferID:        offer.OfferID,
			BuyerID:        buyerID,
			SellerID:       sellerID,
			Cryptocurrency: offer.Cryptocurrency,
			FiatCurrency:   offer.FiatCurrency,
			Amount:         tradeAmount,
			Price:          offer.Price,
			TotalFiat:      cmd.AmountFiat,
			PaymentMethod:  cmd.PaymentMethod,
			Status:         domain.TradeStatusPending,
			EscrowAmount:   tradeAmount,
			EscrowHeld:     true,
			EscrowWalletID: escrowWallet.WalletID,
		}
		if err := s.trades.Save(txCtx, trade); err != nil {
			return err
		}

		entry := &walletdomain.LedgerEntry{
			EntryID:  fmt.Sprintf("LDG-%d", idgen.GenID()),
			WalletID: escrowWallet.WalletID,
			Type:     walletdomain.EntryTypeEscrowLock,
			Amount:   tradeAmount,
			RefID:    trade.TradeID,
		}
		if err := s.ledger.Save(txCtx, entry); err != nil {
			return err
		}

		return s.publisher.PublishInTx(ctx, tx, "trade.created", trade.TradeID, map[string]any{
			"trade_id": trade.TradeID, "offer_id": trade.OfferID,
			"buyer_id": trade.BuyerID, "seller_id": trade.SellerID,
			"amount": trade.Amount.String(), "total_fiat": trade.TotalFiat.String(),
		})
	})
	if err != nil {
		logging.Error(ctx, "failed to accept offer",
			"offer_id", cmd.OfferID, "acceptor_id", cmd.AcceptorID, "error", err)
		return nil, err
	}

	created := trade
	s.dispatch(func() {
		s.notifyParties(ctx, created, "trade_created", "新交易创建",
			fmt.Sprintf("交易 %s 已创建，托管已锁定 %s %s",
				created.TradeID, created.EscrowAmount.String(), created.Cryptocurrency))
	})
	return toTradeDTO(trade), nil
}

// UpdateStatus 推进交易状态机
// COMPLETED 在同事务内把托管从卖方锁定余额释放到买方可用余额；
// CANCELLED 把托管退回锁定钱包；终态重入为幂等空操作
func (s *TradeCommandService) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (*TradeDTO, error) {
	var trade *domain.Trade
	var noop bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)

		t, err := s.trades.GetForUpdate(txCtx, cmd.TradeID)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.ErrTradeNotFound
		}
		if !t.IsParty(cmd.ActorID) && !cmd.IsAdmin {
			return domain.ErrNotTradeParty
		}

		// 终态幂等：重复提交同一终态直接返回成功，不再触碰资金
		if t.IsTerminal() && t.Status == cmd.Status {
			trade = t
			noop = true
			return nil
		}
		if !t.CanTransition(cmd.Status, cmd.IsAdmin) {
			return domain.ErrInvalidTransition
		}

		now := time.Now()
		switch cmd.Status {
		case domain.TradeStatusCompleted:
			if err := s.releaseEscrow(txCtx, t); err != nil {
				return err
			}
			t.MarkCompleted(now)
		case domain.TradeStatusCancelled:
			if err := s.refundEscrow(txCtx, t); err != nil {
				return err
			}
			t.MarkCancelled(now)
		default:
			t.Status = cmd.Status
		}

		if cmd.PaymentProof != "" {
			t.PaymentProof = cmd.PaymentProof
		}
		if cmd.PayoutMethod != "" {
			t.PayoutMethod = cmd.PayoutMethod
		}
		if cmd.PayoutDetails != "" {
			t.PayoutDetails = cmd.PayoutDetails
		}
		if cmd.Notes != "" {
			t.Notes = cmd.Notes
		}

		if err := s.trades.Save(txCtx, t); err != nil {
			return err
		}

		trade = t
		return s.publisher.PublishInTx(ctx, tx, "trade.status_changed", t.TradeID, map[string]any{
			"trade_id": t.TradeID, "status": string(t.Status), "actor_id": cmd.ActorID,
		})
	})
	if err != nil {
		logging.Error(ctx, "failed to update trade status",
			"trade_id", cmd.TradeID, "status", cmd.Status, "error", err)
		return nil, err
	}

	if !noop {
		updated, status := trade, cmd.Status
		s.dispatch(func() { s.notifyStatus(ctx, updated, status) })
	}
	return toTradeDTO(trade), nil
}

// releaseEscrow 托管释放：卖方锁定余额扣减，买方可用余额入账
func (s *TradeCommandService) releaseEscrow(ctx context.Context, t *domain.Trade) error {
	if !t.EscrowHeld {
		return nil
	}

	escrowWallet, err := s.wallets.GetForUpdate(ctx, t.EscrowWalletID)
	if err != nil {
		return err
	}
	if escrowWallet == nil {
		return walletdomain.ErrWalletNotFound
	}
	if err := escrowWallet.ReleaseLocked(t.EscrowAmount); err != nil {
		return err
	}
	if err := s.wallets.Save(ctx, escrowWallet); err != nil {
		return err
	}

	buyerWallet, err := s.wallets.GetOrCreate(ctx, t.BuyerID, t.Cryptocurrency, escrowWallet.Network)
	if err != nil {
		return err
	}
	buyerWallet, err = s.wallets.GetForUpdate(ctx, buyerWallet.WalletID)
	if err != nil {
		return err
	}
	if buyerWallet == nil {
		return walletdomain.ErrWalletNotFound
	}
	if err := buyerWallet.ReceiveRelease(t.EscrowAmount); err != nil {
		return err
	}
	if err := s.wallets.Save(ctx, buyerWallet); err != nil {
		return err
	}

	entries := []*walletdomain.LedgerEntry{
		{
			EntryID:  fmt.Sprintf("LDG-%d", idgen.GenID()),
			WalletID: escrowWallet.WalletID,
			Type:     walletdomain.EntryTypeEscrowRelease,
			Amount:   t.EscrowAmount,
			RefID:    t.TradeID,
		},
		{
			EntryID:  fmt.Sprintf("LDG-%d", idgen.GenID()),
			WalletID: buyerWallet.WalletID,
			Type:     walletdomain.EntryTypeEscrowReceive,
			Amount:   t.EscrowAmount,
			RefID:    t.TradeID,
		},
	}
	for _, entry := range entries {
		if err := s.ledger.Save(ctx, entry); err != nil {
			return err
		}
	}

	t.EscrowHeld = false
	return nil
}

// refundEscrow 托管退回：资金回到锁定钱包的可用余额
func (s *TradeCommandService) refundEscrow(ctx context.Context, t *domain.Trade) error {
	if !t.EscrowHeld {
		return nil
	}

	escrowWallet, err := s.wallets.GetForUpdate(ctx, t.EscrowWalletID)
	if err != nil {
		return err
	}
	if escrowWallet == nil {
		return walletdomain.ErrWalletNotFound
	}
	if err := escrowWallet.Unlock(t.EscrowAmount); err != nil {
		return err
	}
	if err := s.wallets.Save(ctx, escrowWallet); err != nil {
		return err
	}

	entry := &walletdomain.LedgerEntry{
		EntryID:  fmt.Sprintf("LDG-%d", idgen.GenID()),
		WalletID: escrowWallet.WalletID,
		Type:     walletdomain.EntryTypeEscrowUnlock,
		Amount:   t.EscrowAmount,
		RefID:    t.TradeID,
	}
	if err := s.ledger.Save(ctx, entry); err != nil {
		return err
	}

	t.EscrowHeld = false
	return nil
}

// notifyStatus 按目标状态推送生命周期通知
func (s *TradeCommandService) notifyStatus(ctx context.Context, t *domain.Trade, status domain.TradeStatus) {
	switch status {
	case domain.TradeStatusPaymentSent:
		s.notifier.Notify(detach(ctx), t.SellerID, "payment_sent", "买方已付款",
			fmt.Sprintf("交易 %s 的买方声称已完成付款，请确认收款", t.TradeID), tradeMeta(t))
	case domain.TradeStatusPaymentReceived:
		s.notifier.Notify(detach(ctx), t.BuyerID, "payment_received", "卖方已确认收款",
			fmt.Sprintf("交易 %s 的卖方已确认收款，等待放币", t.TradeID), tradeMeta(t))
	case domain.TradeStatusCompleted:
		s.notifyParties(ctx, t, "trade_completed", "交易完成",
			fmt.Sprintf("交易 %s 已完成，托管 %s %s 已释放给买方",
				t.TradeID, t.EscrowAmount.String(), t.Cryptocurrency))
	case domain.TradeStatusCancelled:
		s.notifyParties(ctx, t, "trade_cancelled", "交易取消",
			fmt.Sprintf("交易 %s 已取消，托管资金已退回", t.TradeID))
	case domain.TradeStatusDisputed:
		s.notifyParties(ctx, t, "trade_disputed", "交易进入仲裁",
			fmt.Sprintf("交易 %s 已进入仲裁，等待管理员处理", t.TradeID))
		s.notifier.NotifyAdmins(detach(ctx), "trade_disputed", "待仲裁交易",
			fmt.Sprintf("交易 %s 需要仲裁", t.TradeID), tradeMeta(t))
	}
}

func (s *TradeCommandService) notifyParties(ctx context.Context, t *domain.Trade, kind, title, message string) {
	nctx := detach(ctx)
	s.notifier.Notify(nctx, t.BuyerID, kind, title, message, tradeMeta(t))
	s.notifier.Notify(nctx, t.SellerID, kind, title, message, tradeMeta(t))
}

func tradeMeta(t *domain.Trade) map[string]string {
	return map[string]string{
		"trade_id": t.TradeID,
		"offer_id": t.OfferID,
		"status":   string(t.Status),
	}
}

// detach 剥离调用方取消信号，通知发送不随请求结束而中断
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
