package topics

const (
	// Transações de saldo (apostas, prêmios, estornos), trilha de auditoria
	WalletTransactions    = "wallet_transactions"
	WalletTransactionsDLQ = "wallet_transactions_dlq"

	// Resultado de rodada fechada, para consumidores downstream
	RoundSettled = "round_settled"
)
