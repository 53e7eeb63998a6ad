package events

// Tipos de transação publicados no tópico "wallet_transactions"
const (
	TxKindBet    = "bet"
	TxKindWin    = "win"
	TxKindRefund = "refund"
)

// WalletTransaction é o registro append-only consumido pelo audit-worker.
// O engine só escreve; nunca lê de volta.
type WalletTransaction struct {
	UserID      string `json:"user_id"`
	Currency    string `json:"currency"`
	AmountCents int64  `json:"amount_cents"`
	Kind        string `json:"kind"` // "bet" | "win" | "refund"
	RoundNumber int64  `json:"round_number"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
