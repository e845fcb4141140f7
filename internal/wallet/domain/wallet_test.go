package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFundedWallet(available string) *Wallet {
	w := NewWallet("WAL-1", "user-1", "BTC", "mainnet")
	w.Available = d(available)
	return w
}

func TestWalletLockUnlockRoundTrip(t *testing.T) {
	w := newFundedWallet("1.5")

	if err := w.Lock(d("0.5")); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if !w.Available.Equal(d("1")) || !w.Locked.Equal(d("0.5")) {
		t.Fatalf("after lock: available=%s locked=%s", w.Available, w.Locked)
	}

	if err := w.Unlock(d("0.5")); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if !w.Available.Equal(d("1.5")) || !w.Locked.IsZero() {
		t.Fatalf("round trip did not restore balances: available=%s locked=%s", w.Available, w.Locked)
	}
}

func TestWalletLockInsufficientFunds(t *testing.T) {
	w := newFundedWallet("0.05")

	err := w.Lock(d("0.1"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	// 失败的锁定不得改变任何余额
	if !w.Available.Equal(d("0.05")) || !w.Locked.IsZero() {
		t.Fatalf("failed lock mutated balances: available=%s locked=%s", w.Available, w.Locked)
	}
}

func TestWalletUnlockMoreThanLocked(t *testing.T) {
	w := newFundedWallet("1")
	if err := w.Lock(d("0.3")); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if err := w.Unlock(d("0.4")); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
	if err := w.ReleaseLocked(d("0.4")); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestWalletEscrowReleaseConservesTotal(t *testing.T) {
	seller := newFundedWallet("1")
	buyer := NewWallet("WAL-2", "user-2", "BTC", "mainnet")

	amount := d("0.1")
	if err := seller.Lock(amount); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := seller.ReleaseLocked(amount); err != nil {
		t.Fatalf("ReleaseLocked: %v", err)
	}
	if err := buyer.ReceiveRelease(amount); err != nil {
		t.Fatalf("ReceiveRelease: %v", err)
	}

	if !seller.Balance().Equal(d("0.9")) {
		t.Fatalf("seller balance = %s, want 0.9", seller.Balance())
	}
	if !buyer.Balance().Equal(amount) {
		t.Fatalf("buyer balance = %s, want 0.1", buyer.Balance())
	}
	if !seller.Balance().Add(buyer.Balance()).Equal(d("1")) {
		t.Fatalf("release did not conserve total: %s", seller.Balance().Add(buyer.Balance()))
	}
}

func TestWalletNonPositiveAmounts(t *testing.T) {
	w := newFundedWallet("1")
	ops := map[string]func(decimal.Decimal) error{
		"Lock":           w.Lock,
		"Unlock":         w.Unlock,
		"ReleaseLocked":  w.ReleaseLocked,
		"ReceiveRelease": w.ReceiveRelease,
		"Credit":         w.Credit,
		"Debit":          w.Debit,
	}
	for name, op := range ops {
		if err := op(decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%s(0): expected ErrInvalidAmount, got %v", name, err)
		}
		if err := op(d("-1")); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%s(-1): expected ErrInvalidAmount, got %v", name, err)
		}
	}
}

func TestWalletDepositWithdrawTotals(t *testing.T) {
	w := NewWallet("WAL-1", "user-1", "USDT", "tron")

	if err := w.Deposit(d("100")); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := w.Withdraw(d("40")); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	if !w.Available.Equal(d("60")) {
		t.Fatalf("available = %s, want 60", w.Available)
	}
	if !w.TotalDeposits.Equal(d("100")) || !w.TotalWithdrawals.Equal(d("40")) {
		t.Fatalf("totals = %s / %s", w.TotalDeposits, w.TotalWithdrawals)
	}
}

func TestWalletDisable(t *testing.T) {
	w := newFundedWallet("1")
	if err := w.Disable(); !errors.Is(err, ErrBalanceRemaining) {
		t.Fatalf("expected ErrBalanceRemaining, got %v", err)
	}

	w.Available = decimal.Zero
	if err := w.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if w.IsActive {
		t.Fatal("wallet still active after disable")
	}
	if err := w.Credit(d("1")); !errors.Is(err, ErrWalletDisabled) {
		t.Fatalf("expected ErrWalletDisabled, got %v", err)
	}
	if err := w.Lock(d("1")); !errors.Is(err, ErrWalletDisabled) {
		t.Fatalf("expected ErrWalletDisabled, got %v", err)
	}
}
