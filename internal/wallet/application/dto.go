package application

// WalletDTO 钱包数据传输对象
type WalletDTO struct {
	WalletID         string `json:"wallet_id"`
	UserID           string `json:"user_id"`
	Currency         string `json:"currency"`
	Network          string `json:"network"`
	Available        string `json:"available"`
	Locked           string `json:"locked"`
	TotalDeposits    string `json:"total_deposits"`
	TotalWithdrawals string `json:"total_withdrawals"`
	IsActive         bool   `json:"is_active"`
	IsDefault        bool   `json:"is_default"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

// LedgerEntryDTO 账本流水数据传输对象
type LedgerEntryDTO struct {
	EntryID   string `json:"entry_id"`
	WalletID  string `json:"wallet_id"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	RefID     string `json:"ref_id,omitempty"`
	Remark    string `json:"remark,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// SwapResultDTO 币币兑换结果
type SwapResultDTO struct {
	SwapID       string `json:"swap_id"`
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
	FromAmount   string `json:"from_amount"`
	ToAmount     string `json:"to_amount"`
	Rate         string `json:"rate"`
}
