package dto

type DepositRequest struct {
	UserID      string `json:"userId"`
	Currency    string `json:"currency"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"`
}
