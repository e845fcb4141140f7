package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestTrade(status TradeStatus) *Trade {
	return &Trade{
		TradeID:        "TRD-1",
		OfferID:        "OFR-1",
		BuyerID:        "buyer",
		SellerID:       "seller",
		Cryptocurrency: "BTC",
		FiatCurrency:   "USD",
		Amount:         decimal.RequireFromString("0.1"),
		Price:          decimal.RequireFromString("50000"),
		TotalFiat:      decimal.RequireFromString("5000"),
		Status:         status,
		EscrowAmount:   decimal.RequireFromString("0.1"),
		EscrowHeld:     true,
	}
}

func TestConvertAmount(t *testing.T) {
	// 5000 USD @ 50000 USD/BTC = 0.1 BTC
	got := ConvertAmount(decimal.RequireFromString("5000"), decimal.RequireFromString("50000"))
	if !got.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("ConvertAmount = %s, want 0.1", got)
	}

	// 非整除价格按 18 位精度截断
	got = ConvertAmount(decimal.RequireFromString("100"), decimal.RequireFromString("3"))
	if got.Exponent() < -18 {
		t.Fatalf("precision exceeds 18 places: %s", got)
	}
	if !got.Mul(decimal.RequireFromString("3")).Sub(decimal.RequireFromString("100")).Abs().
		LessThan(decimal.RequireFromString("0.000000000000001")) {
		t.Fatalf("round trip drift too large: %s", got)
	}
}

func TestTradeHappyPathTransitions(t *testing.T) {
	trade := newTestTrade(TradeStatusPending)
	path := []TradeStatus{
		TradeStatusPaymentSent,
		TradeStatusPaymentReceived,
		TradeStatusCryptoReleased,
		TradeStatusCompleted,
	}
	for _, next := range path {
		if !trade.CanTransition(next, false) {
			t.Fatalf("transition %s -> %s should be allowed", trade.Status, next)
		}
		trade.Status = next
	}
	if !trade.IsTerminal() {
		t.Fatal("COMPLETED should be terminal")
	}
}

func TestTradeCancellableFromNonTerminalStates(t *testing.T) {
	// 放币声明（CRYPTO_RELEASED）仅为信息性状态，同样允许取消
	for _, status := range []TradeStatus{
		TradeStatusPending, TradeStatusPaymentSent, TradeStatusPaymentReceived, TradeStatusCryptoReleased,
	} {
		if !newTestTrade(status).CanTransition(TradeStatusCancelled, false) {
			t.Errorf("%s -> CANCELLED should be allowed", status)
		}
	}
}

func TestTradeDisputeFreezesTrade(t *testing.T) {
	for _, status := range []TradeStatus{TradeStatusPending, TradeStatusPaymentSent, TradeStatusPaymentReceived, TradeStatusCryptoReleased} {
		if !newTestTrade(status).CanTransition(TradeStatusDisputed, false) {
			t.Errorf("%s -> DISPUTED should be allowed", status)
		}
	}

	disputed := newTestTrade(TradeStatusDisputed)
	for _, target := range []TradeStatus{TradeStatusCompleted, TradeStatusCancelled, TradeStatusPaymentSent} {
		if disputed.CanTransition(target, false) {
			t.Errorf("non-admin DISPUTED -> %s should be rejected", target)
		}
	}
	if !disputed.CanTransition(TradeStatusCompleted, true) {
		t.Error("admin DISPUTED -> COMPLETED should be allowed")
	}
	if !disputed.CanTransition(TradeStatusCancelled, true) {
		t.Error("admin DISPUTED -> CANCELLED should be allowed")
	}
	if disputed.CanTransition(TradeStatusPaymentSent, true) {
		t.Error("admin DISPUTED -> PAYMENT_SENT should be rejected")
	}
}

func TestTradeTerminalStatesAreFinal(t *testing.T) {
	for _, status := range []TradeStatus{TradeStatusCompleted, TradeStatusCancelled} {
		trade := newTestTrade(status)
		for _, target := range []TradeStatus{
			TradeStatusPending, TradeStatusPaymentSent, TradeStatusPaymentReceived,
			TradeStatusCryptoReleased, TradeStatusCompleted, TradeStatusCancelled, TradeStatusDisputed,
		} {
			if trade.CanTransition(target, true) {
				t.Errorf("%s -> %s should be rejected", status, target)
			}
		}
	}
}

func TestTradeSkipsIntermediateStates(t *testing.T) {
	// 卖方确认收款后可直接完成，无需途经 CRYPTO_RELEASED
	if !newTestTrade(TradeStatusPaymentReceived).CanTransition(TradeStatusCompleted, false) {
		t.Fatal("PAYMENT_RECEIVED -> COMPLETED should be allowed")
	}
	// 但不允许跳过付款环节
	if newTestTrade(TradeStatusPending).CanTransition(TradeStatusCompleted, false) {
		t.Fatal("PENDING -> COMPLETED should be rejected")
	}
}

func TestTradeParty(t *testing.T) {
	trade := newTestTrade(TradeStatusPending)
	if !trade.IsParty("buyer") || !trade.IsParty("seller") {
		t.Fatal("buyer and seller are both parties")
	}
	if trade.IsParty("stranger") {
		t.Fatal("stranger is not a party")
	}
}

func TestTradeMarkTerminal(t *testing.T) {
	now := time.Now()

	trade := newTestTrade(TradeStatusPaymentReceived)
	trade.MarkCompleted(now)
	if trade.Status != TradeStatusCompleted || trade.CompletedAt == nil {
		t.Fatalf("MarkCompleted: status=%s completedAt=%v", trade.Status, trade.CompletedAt)
	}

	trade = newTestTrade(TradeStatusPending)
	trade.MarkCancelled(now)
	if trade.Status != TradeStatusCancelled || trade.CancelledAt == nil {
		t.Fatalf("MarkCancelled: status=%s cancelledAt=%v", trade.Status, trade.CancelledAt)
	}
}
