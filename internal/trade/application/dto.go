package application

import "github.com/wyfcoding/p2pescrow/internal/trade/domain"

// TradeDTO 交易数据传输对象
type TradeDTO struct {
	TradeID        string `json:"trade_id"`
	OfferID        string `json:"offer_id"`
	BuyerID        string `json:"buyer_id"`
	SellerID       string `json:"seller_id"`
	Cryptocurrency string `json:"cryptocurrency"`
	FiatCurrency   string `json:"fiat_currency"`
	Amount         string `json:"amount"`
	Price          string `json:"price"`
	TotalFiat      string `json:"total_fiat"`
	PaymentMethod  string `json:"payment_method"`
	Status         string `json:"status"`
	EscrowAmount   string `json:"escrow_amount"`
	EscrowHeld     bool   `json:"escrow_held"`
	PaymentProof   string `json:"payment_proof,omitempty"`
	PayoutMethod   string `json:"payout_method,omitempty"`
	PayoutDetails  string `json:"payout_details,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      int64  `json:"created_at"`
	CompletedAt    int64  `json:"completed_at,omitempty"`
	CancelledAt    int64  `json:"cancelled_at,omitempty"`
}

func toTradeDTO(t *domain.Trade) *TradeDTO {
	dto := &TradeDTO{
		TradeID:        t.TradeID,
		OfferID:        t.OfferID,
		BuyerID:        t.BuyerID,
		SellerID:       t.SellerID,
		Cryptocurrency: t.Cryptocurrency,
		FiatCurrency:   t.FiatCurrency,
		Amount:         t.Amount.String(),
		Price:          t.Price.String(),
		TotalFiat:      t.TotalFiat.String(),
		PaymentMethod:  t.PaymentMethod,
		Status:         string(t.Status),
		EscrowAmount:   t.EscrowAmount.String(),
		EscrowHeld:     t.EscrowHeld,
		PaymentProof:   t.PaymentProof,
		PayoutMethod:   t.PayoutMethod,
		PayoutDetails:  t.PayoutDetails,
		Notes:          t.Notes,
		CreatedAt:      t.CreatedAt.Unix(),
	}
	if t.CompletedAt != nil {
		dto.CompletedAt = t.CompletedAt.Unix()
	}
	if t.CancelledAt != nil {
		dto.CancelledAt = t.CancelledAt.Unix()
	}
	return dto
}
