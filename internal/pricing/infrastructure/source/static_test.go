package source

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/p2pescrow/internal/pricing/domain"
)

func TestStaticSourceFetch(t *testing.T) {
	src, err := NewStaticSource(map[string]string{
		"BTC":  "50000",
		"USDT": "1",
	})
	if err != nil {
		t.Fatalf("NewStaticSource: %v", err)
	}

	quote, err := src.Fetch(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !quote.Price.Equal(decimal.RequireFromString("50000")) {
		t.Fatalf("price = %s, want 50000", quote.Price)
	}
	if quote.Source != "static" {
		t.Fatalf("source = %q", quote.Source)
	}

	if _, err := src.Fetch(context.Background(), "DOGE"); !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestStaticSourceRejectsMalformedPrice(t *testing.T) {
	if _, err := NewStaticSource(map[string]string{"BTC": "not-a-number"}); err == nil {
		t.Fatal("expected error for malformed price")
	}
}
