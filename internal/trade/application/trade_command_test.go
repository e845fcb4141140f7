package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	offerdomain "github.com/wyfcoding/p2pescrow/internal/offer/domain"
	"github.com/wyfcoding/p2pescrow/internal/trade/domain"
	walletdomain "github.com/wyfcoding/p2pescrow/internal/wallet/domain"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeTxRunner 直接执行事务函数，不接数据库
type fakeTxRunner struct{}

func (fakeTxRunner) Transaction(fc func(tx *gorm.DB) error, _ ...*sql.TxOptions) error {
	return fc(nil)
}

type fakeWalletRepo struct {
	wallets map[string]*walletdomain.Wallet
	seq     int
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: map[string]*walletdomain.Wallet{}}
}

func (r *fakeWalletRepo) add(w *walletdomain.Wallet) {
	r.wallets[w.WalletID] = w
}

func (r *fakeWalletRepo) Save(_ context.Context, _ *walletdomain.Wallet) error { return nil }

func (r *fakeWalletRepo) Get(_ context.Context, walletID string) (*walletdomain.Wallet, error) {
	return r.wallets[walletID], nil
}

func (r *fakeWalletRepo) GetForUpdate(_ context.Context, walletID string) (*walletdomain.Wallet, error) {
	return r.wallets[walletID], nil
}

func (r *fakeWalletRepo) GetOrCreate(_ context.Context, userID, currency, network string) (*walletdomain.Wallet, error) {
	for _, w := range r.wallets {
		if w.UserID == userID && w.Currency == currency && w.Network == network {
			return w, nil
		}
	}
	r.seq++
	w := walletdomain.NewWallet(fmt.Sprintf("WAL-%d", r.seq), userID, currency, network)
	r.wallets[w.WalletID] = w
	return w, nil
}

func (r *fakeWalletRepo) GetByUser(_ context.Context, _ string) ([]*walletdomain.Wallet, error) {
	return nil, nil
}

func (r *fakeWalletRepo) SetDefault(_ context.Context, _, _ string) error { return nil }

type fakeOfferRepo struct {
	offer    *offerdomain.Offer
	consumed int
}

func (r *fakeOfferRepo) Save(_ context.Context, _ *offerdomain.Offer) error { return nil }

func (r *fakeOfferRepo) Get(_ context.Context, offerID string) (*offerdomain.Offer, error) {
	return r.GetForUpdate(context.Background(), offerID)
}

func (r *fakeOfferRepo) GetForUpdate(_ context.Context, offerID string) (*offerdomain.Offer, error) {
	if r.offer != nil && r.offer.OfferID == offerID {
		return r.offer, nil
	}
	return nil, nil
}

func (r *fakeOfferRepo) List(_ context.Context, _ offerdomain.OfferFilter, _, _ int) ([]*offerdomain.Offer, int64, error) {
	return nil, 0, nil
}

func (r *fakeOfferRepo) Consume(_ context.Context, offerID string, amount decimal.Decimal) (*offerdomain.Offer, error) {
	if r.offer == nil || r.offer.OfferID != offerID {
		return nil, offerdomain.ErrOfferNotActive
	}
	if err := r.offer.Consume(amount); err != nil {
		return nil, offerdomain.ErrOfferNotActive
	}
	r.consumed++
	return r.offer, nil
}

func (r *fakeOfferRepo) UpdateStatus(_ context.Context, _ string, _, _ offerdomain.OfferStatus) error {
	return nil
}

func (r *fakeOfferRepo) ExpireStale(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

type fakeTradeRepo struct {
	trades map[string]*domain.Trade
}

func (r *fakeTradeRepo) Save(_ context.Context, trade *domain.Trade) error {
	r.trades[trade.TradeID] = trade
	return nil
}

func (r *fakeTradeRepo) Get(_ context.Context, tradeID string) (*domain.Trade, error) {
	return r.trades[tradeID], nil
}

func (r *fakeTradeRepo) GetForUpdate(_ context.Context, tradeID string) (*domain.Trade, error) {
	return r.trades[tradeID], nil
}

func (r *fakeTradeRepo) ListByParticipant(_ context.Context, _ string, _ domain.TradeFilter, _, _ int) ([]*domain.Trade, int64, error) {
	return nil, 0, nil
}

type fakeLedgerRepo struct {
	entries []*walletdomain.LedgerEntry
}

func (r *fakeLedgerRepo) Save(_ context.Context, entry *walletdomain.LedgerEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLedgerRepo) GetHistory(_ context.Context, _ string, _, _ int) ([]*walletdomain.LedgerEntry, int64, error) {
	return nil, 0, nil
}

func (r *fakeLedgerRepo) count(typ walletdomain.EntryType) int {
	n := 0
	for _, e := range r.entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fakePublisher struct {
	topics []string
}

func (p *fakePublisher) PublishInTx(_ context.Context, _ any, topic string, _ string, _ any) error {
	p.topics = append(p.topics, topic)
	return nil
}

func (p *fakePublisher) count(topic string) int {
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	kinds  []string
	admins int
}

func (n *fakeNotifier) Notify(_ context.Context, _ string, kind, _, _ string, _ map[string]string) {
	n.kinds = append(n.kinds, kind)
}

func (n *fakeNotifier) NotifyAdmins(_ context.Context, _, _, _ string, _ map[string]string) {
	n.admins++
}

type tradeFixture struct {
	svc      *TradeCommandService
	trades   *fakeTradeRepo
	offers   *fakeOfferRepo
	wallets  *fakeWalletRepo
	ledger   *fakeLedgerRepo
	notifier *fakeNotifier
	events   *fakePublisher
	seller   *walletdomain.Wallet
}

// newTradeFixture 卖方 SELL 单：1 BTC @ 50000 USD，限额 [100, 50000]
func newTradeFixture(t *testing.T, sellerAvailable string) *tradeFixture {
	t.Helper()

	wallets := newFakeWalletRepo()
	seller := walletdomain.NewWallet("WAL-SELLER", "seller", "BTC", "mainnet")
	seller.Available = d(sellerAvailable)
	wallets.add(seller)

	f := &tradeFixture{
		trades: &fakeTradeRepo{trades: map[string]*domain.Trade{}},
		offers: &fakeOfferRepo{offer: offerdomain.NewOffer(
			"OFR-1", "seller", offerdomain.OfferTypeSell, "BTC", "USD",
			d("1"), d("50000"), d("100"), d("50000"),
			[]string{"bank_transfer"}, time.Hour)},
		wallets:  wallets,
		ledger:   &fakeLedgerRepo{},
		notifier: &fakeNotifier{},
		events:   &fakePublisher{},
		seller:   seller,
	}
	f.svc = NewTradeCommandService(
		f.trades, f.offers, f.wallets, f.ledger,
		f.notifier, f.events, fakeTxRunner{}, "mainnet",
	)
	// 同步派发，便于对通知计数做断言
	f.svc.dispatch = func(fn func()) { fn() }
	return f
}

func (f *tradeFixture) accept(t *testing.T) *TradeDTO {
	t.Helper()
	dto, err := f.svc.AcceptOffer(context.Background(), AcceptOfferCommand{
		OfferID:       "OFR-1",
		AcceptorID:    "buyer",
		AmountFiat:    d("5000"),
		PaymentMethod: "bank_transfer",
	})
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	return dto
}

func (f *tradeFixture) updateStatus(t *testing.T, actor string, status domain.TradeStatus, tradeID string) {
	t.Helper()
	if _, err := f.svc.UpdateStatus(context.Background(), UpdateStatusCommand{
		TradeID: tradeID,
		ActorID: actor,
		Status:  status,
	}); err != nil {
		t.Fatalf("UpdateStatus %s -> %s: %v", actor, status, err)
	}
}

func TestAcceptOfferLocksEscrow(t *testing.T) {
	f := newTradeFixture(t, "1")

	dto := f.accept(t)

	if dto.Amount != "0.1" {
		t.Fatalf("trade amount = %s, want 0.1", dto.Amount)
	}
	if !f.seller.Available.Equal(d("0.9")) || !f.seller.Locked.Equal(d("0.1")) {
		t.Fatalf("seller wallet available=%s locked=%s, want 0.9/0.1", f.seller.Available, f.seller.Locked)
	}
	if !f.offers.offer.Amount.Equal(d("0.9")) {
		t.Fatalf("offer amount = %s, want 0.9", f.offers.offer.Amount)
	}
	if f.ledger.count(walletdomain.EntryTypeEscrowLock) != 1 {
		t.Fatalf("escrow lock entries = %d, want 1", f.ledger.count(walletdomain.EntryTypeEscrowLock))
	}
	if f.events.count("trade.created") != 1 {
		t.Fatalf("trade.created events = %d, want 1", f.events.count("trade.created"))
	}
	// 买卖双方各收到一条创建通知
	if len(f.notifier.kinds) != 2 {
		t.Fatalf("notifications = %v, want 2x trade_created", f.notifier.kinds)
	}
}

func TestAcceptOfferInsufficientFundsLeavesNoTrace(t *testing.T) {
	f := newTradeFixture(t, "0.05")

	_, err := f.svc.AcceptOffer(context.Background(), AcceptOfferCommand{
		OfferID:       "OFR-1",
		AcceptorID:    "buyer",
		AmountFiat:    d("5000"),
		PaymentMethod: "bank_transfer",
	})
	if !errors.Is(err, walletdomain.ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}

	if len(f.trades.trades) != 0 {
		t.Fatal("no trade must be created")
	}
	if f.offers.consumed != 0 || !f.offers.offer.Amount.Equal(d("1")) {
		t.Fatalf("offer must stay untouched, amount = %s", f.offers.offer.Amount)
	}
	if !f.seller.Available.Equal(d("0.05")) || !f.seller.Locked.IsZero() {
		t.Fatalf("seller wallet mutated: available=%s locked=%s", f.seller.Available, f.seller.Locked)
	}
	if len(f.events.topics) != 0 || len(f.notifier.kinds) != 0 {
		t.Fatal("no events or notifications on failure")
	}
}

func TestCompleteReleasesEscrowExactlyOnce(t *testing.T) {
	f := newTradeFixture(t, "1")
	tradeID := f.accept(t).TradeID

	f.updateStatus(t, "buyer", domain.TradeStatusPaymentSent, tradeID)
	f.updateStatus(t, "seller", domain.TradeStatusPaymentReceived, tradeID)
	f.updateStatus(t, "seller", domain.TradeStatusCompleted, tradeID)

	buyerWallet, _ := f.wallets.GetOrCreate(context.Background(), "buyer", "BTC", "mainnet")
	if !buyerWallet.Available.Equal(d("0.1")) {
		t.Fatalf("buyer available = %s, want 0.1", buyerWallet.Available)
	}
	if !f.seller.Available.Equal(d("0.9")) || !f.seller.Locked.IsZero() {
		t.Fatalf("seller wallet available=%s locked=%s, want 0.9/0", f.seller.Available, f.seller.Locked)
	}
	if f.trades.trades[tradeID].EscrowHeld {
		t.Fatal("escrow must be released after completion")
	}

	releases := f.ledger.count(walletdomain.EntryTypeEscrowRelease)
	statusEvents := f.events.count("trade.status_changed")
	notifications := len(f.notifier.kinds)

	// 终态重入：资金、流水、事件、通知都不得再动
	f.updateStatus(t, "seller", domain.TradeStatusCompleted, tradeID)

	if !buyerWallet.Available.Equal(d("0.1")) || !f.seller.Locked.IsZero() {
		t.Fatal("balances moved on idempotent re-completion")
	}
	if got := f.ledger.count(walletdomain.EntryTypeEscrowRelease); got != releases || releases != 1 {
		t.Fatalf("escrow release entries = %d, want exactly 1", got)
	}
	if f.ledger.count(walletdomain.EntryTypeEscrowReceive) != 1 {
		t.Fatal("escrow receive entries, want exactly 1")
	}
	if f.events.count("trade.status_changed") != statusEvents {
		t.Fatal("status event emitted on idempotent re-completion")
	}
	if len(f.notifier.kinds) != notifications {
		t.Fatal("notification sent on idempotent re-completion")
	}
}

func TestCancelRefundsEscrowExactlyOnce(t *testing.T) {
	f := newTradeFixture(t, "1")
	tradeID := f.accept(t).TradeID

	f.updateStatus(t, "buyer", domain.TradeStatusCancelled, tradeID)

	if !f.seller.Available.Equal(d("1")) || !f.seller.Locked.IsZero() {
		t.Fatalf("refund: seller available=%s locked=%s, want 1/0", f.seller.Available, f.seller.Locked)
	}
	if f.trades.trades[tradeID].EscrowHeld {
		t.Fatal("escrow must be refunded after cancellation")
	}

	unlocks := f.ledger.count(walletdomain.EntryTypeEscrowUnlock)
	notifications := len(f.notifier.kinds)

	f.updateStatus(t, "buyer", domain.TradeStatusCancelled, tradeID)

	if !f.seller.Available.Equal(d("1")) || !f.seller.Locked.IsZero() {
		t.Fatal("balances moved on idempotent re-cancellation")
	}
	if got := f.ledger.count(walletdomain.EntryTypeEscrowUnlock); got != unlocks || unlocks != 1 {
		t.Fatalf("escrow unlock entries = %d, want exactly 1", got)
	}
	if len(f.notifier.kinds) != notifications {
		t.Fatal("notification sent on idempotent re-cancellation")
	}
}

func TestUpdateStatusRejectsStranger(t *testing.T) {
	f := newTradeFixture(t, "1")
	tradeID := f.accept(t).TradeID

	_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusCommand{
		TradeID: tradeID,
		ActorID: "stranger",
		Status:  domain.TradeStatusCancelled,
	})
	if !errors.Is(err, domain.ErrNotTradeParty) {
		t.Fatalf("got %v, want ErrNotTradeParty", err)
	}
	if !f.seller.Locked.Equal(d("0.1")) {
		t.Fatal("escrow must stay locked")
	}
}
