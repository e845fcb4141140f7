package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestOffer() *Offer {
	return NewOffer("OFR-1", "user-1", OfferTypeSell, "BTC", "USD",
		d("1"), d("50000"), d("100"), d("50000"),
		[]string{"bank_transfer", "paypal"}, time.Hour)
}

func TestOfferValidate(t *testing.T) {
	if err := newTestOffer().Validate(); err != nil {
		t.Fatalf("valid offer rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Offer)
		want   error
	}{
		{"no payment methods", func(o *Offer) { o.PaymentMethods = nil }, ErrNoPaymentMethods},
		{"zero amount", func(o *Offer) { o.Amount = decimal.Zero }, ErrInvalidLimits},
		{"negative price", func(o *Offer) { o.Price = d("-1") }, ErrInvalidLimits},
		{"zero min limit", func(o *Offer) { o.MinLimit = decimal.Zero }, ErrInvalidLimits},
		{"max below min", func(o *Offer) { o.MaxLimit = d("50") }, ErrInvalidLimits},
		// 全量法币价值 0.001*50000=50 低于下限 100
		{"total below min limit", func(o *Offer) { o.Amount = d("0.001") }, ErrInvalidLimits},
		// 全量法币价值 2*50000=100000 超过上限 50000
		{"total above max limit", func(o *Offer) { o.Amount = d("2") }, ErrInvalidLimits},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOffer()
			tc.mutate(o)
			if err := o.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestOfferAcceptability(t *testing.T) {
	now := time.Now()

	o := newTestOffer()
	if !o.IsAcceptable(now) {
		t.Fatal("fresh active offer should be acceptable")
	}

	// 过期但状态尚未被清扫，仍不可接受
	o.ExpiresAt = now.Add(-time.Minute)
	if o.IsAcceptable(now) {
		t.Fatal("expired offer must not be acceptable even while still ACTIVE")
	}

	o = newTestOffer()
	o.Status = OfferStatusCancelled
	if o.IsAcceptable(now) {
		t.Fatal("cancelled offer must not be acceptable")
	}
}

func TestOfferWithinLimits(t *testing.T) {
	o := newTestOffer()

	for _, amount := range []string{"100", "5000", "50000"} {
		if !o.WithinLimits(d(amount)) {
			t.Errorf("%s should be within [100, 50000]", amount)
		}
	}
	for _, amount := range []string{"50", "99.99", "50000.01"} {
		if o.WithinLimits(d(amount)) {
			t.Errorf("%s should be outside [100, 50000]", amount)
		}
	}
}

func TestOfferAcceptsPaymentMethod(t *testing.T) {
	o := newTestOffer()
	if !o.AcceptsPaymentMethod("paypal") {
		t.Fatal("paypal should be accepted")
	}
	if o.AcceptsPaymentMethod("cash") {
		t.Fatal("cash should not be accepted")
	}
}

func TestOfferConsumePartial(t *testing.T) {
	o := newTestOffer()
	if err := o.Consume(d("0.1")); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !o.Amount.Equal(d("0.9")) {
		t.Fatalf("amount = %s, want 0.9", o.Amount)
	}
	if o.Status != OfferStatusActive {
		t.Fatalf("status = %s, want ACTIVE", o.Status)
	}
}

func TestOfferConsumeExhausts(t *testing.T) {
	o := newTestOffer()
	if err := o.Consume(d("1")); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if o.Status != OfferStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", o.Status)
	}
	if o.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}

	// 残余低于 epsilon 同样视为耗尽
	o = newTestOffer()
	if err := o.Consume(d("0.999999995")); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if o.Status != OfferStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED for dust remainder", o.Status)
	}
}

func TestOfferConsumeRejects(t *testing.T) {
	o := newTestOffer()
	if err := o.Consume(d("1.1")); !errors.Is(err, ErrInvalidLimits) {
		t.Fatalf("over-consume: got %v", err)
	}

	o.Status = OfferStatusCancelled
	if err := o.Consume(d("0.1")); !errors.Is(err, ErrOfferNotActive) {
		t.Fatalf("consume on cancelled: got %v", err)
	}
}
