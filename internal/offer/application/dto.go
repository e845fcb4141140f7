package application

// OfferDTO 报价单数据传输对象
type OfferDTO struct {
	OfferID        string   `json:"offer_id"`
	OwnerID        string   `json:"owner_id"`
	Type           string   `json:"type"`
	Cryptocurrency string   `json:"cryptocurrency"`
	FiatCurrency   string   `json:"fiat_currency"`
	Amount         string   `json:"amount"`
	Price          string   `json:"price"`
	MinLimit       string   `json:"min_limit"`
	MaxLimit       string   `json:"max_limit"`
	PaymentMethods []string `json:"payment_methods"`
	Status         string   `json:"status"`
	ExpiresAt      int64    `json:"expires_at"`
	CompletedAt    int64    `json:"completed_at,omitempty"`
	CreatedAt      int64    `json:"created_at"`
}
