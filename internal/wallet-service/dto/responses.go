package dto

type WalletResponse struct {
	UserID       string `json:"userId"`
	Currency     string `json:"currency"`
	WalletID     string `json:"walletId"`
	BalanceCents int64  `json:"balance_cents"`
}
